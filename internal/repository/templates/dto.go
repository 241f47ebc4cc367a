package templates

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/arcware-ai/intentq/internal/domain"
	"github.com/arcware-ai/intentq/internal/domain/template"
)

// domainDTO mirrors the domain configuration YAML.
type domainDTO struct {
	DomainName string      `yaml:"domain_name"`
	Entities   []entityDTO `yaml:"entities"`
	Vocabulary struct {
		EntitySynonyms map[string][]string `yaml:"entity_synonyms"`
	} `yaml:"vocabulary"`
	Sources           []sourceDTO `yaml:"sources"`
	NoResultsResponse string      `yaml:"no_results_response"`
	ErrorResponse     string      `yaml:"error_response"`
}

type entityDTO struct {
	Name             string   `yaml:"name"`
	SearchableFields []string `yaml:"searchable_fields"`
	CommonFilters    []string `yaml:"common_filters"`
	Aggregations     []string `yaml:"aggregations"`
}

type sourceDTO struct {
	Name    string   `yaml:"name"`
	URL     string   `yaml:"url"`
	Formats []string `yaml:"formats"`
}

// libraryDTO mirrors a template library YAML file.
type libraryDTO struct {
	Templates []templateDTO `yaml:"templates"`
}

type templateDTO struct {
	ID           string         `yaml:"id"`
	Description  string         `yaml:"description"`
	NLExamples   []string       `yaml:"nl_examples"`
	Backend      string         `yaml:"backend"`
	Query        string         `yaml:"query"`
	Index        string         `yaml:"index"`
	Endpoint     string         `yaml:"endpoint"`
	Source       string         `yaml:"source"`
	Parameters   []parameterDTO `yaml:"parameters"`
	Tags         []string       `yaml:"tags"`
	SemanticTags struct {
		Action          string   `yaml:"action"`
		PrimaryEntity   string   `yaml:"primary_entity"`
		SecondaryEntity string   `yaml:"secondary_entity"`
		Qualifiers      []string `yaml:"qualifiers"`
	} `yaml:"semantic_tags"`
}

type parameterDTO struct {
	Name          string   `yaml:"name"`
	Type          string   `yaml:"type"`
	Description   string   `yaml:"description"`
	Required      bool     `yaml:"required"`
	AllowedValues []string `yaml:"allowed_values"`
	Default       string   `yaml:"default"`
	Example       string   `yaml:"example"`
	Fuzzy         bool     `yaml:"fuzzy"`
}

func loadDomainFile(path string) (domain.Knowledge, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return domain.Knowledge{}, fmt.Errorf("read domain config %s: %w", path, err)
	}

	var dto domainDTO
	if err := yaml.Unmarshal(data, &dto); err != nil {
		return domain.Knowledge{}, fmt.Errorf("parse domain config %s: %w", path, err)
	}
	if dto.DomainName == "" {
		return domain.Knowledge{}, fmt.Errorf("domain config %s: domain_name is required", path)
	}

	entities := make([]domain.Entity, 0, len(dto.Entities))
	for _, e := range dto.Entities {
		entities = append(entities, domain.Entity{
			Name:             e.Name,
			SearchableFields: e.SearchableFields,
			CommonFilters:    e.CommonFilters,
			Aggregations:     e.Aggregations,
		})
	}
	sources := make([]domain.Source, 0, len(dto.Sources))
	for _, s := range dto.Sources {
		sources = append(sources, domain.Source{Name: s.Name, URL: s.URL, Formats: s.Formats})
	}

	return domain.NewKnowledge(
		dto.DomainName,
		entities,
		domain.Vocabulary{EntitySynonyms: dto.Vocabulary.EntitySynonyms},
		sources,
		dto.NoResultsResponse,
		dto.ErrorResponse,
	), nil
}

func loadLibraryFile(path string) ([]template.Template, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read template library %s: %w", path, err)
	}

	var dto libraryDTO
	if err := yaml.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("parse template library %s: %w", path, err)
	}

	out := make([]template.Template, 0, len(dto.Templates))
	for _, t := range dto.Templates {
		params := make([]template.Parameter, 0, len(t.Parameters))
		for _, p := range t.Parameters {
			params = append(params, template.Parameter{
				Name:          p.Name,
				Type:          template.ParamType(p.Type),
				Description:   p.Description,
				Required:      p.Required,
				AllowedValues: p.AllowedValues,
				Default:       p.Default,
				Example:       p.Example,
				Fuzzy:         p.Fuzzy,
			})
		}

		tpl, err := template.New(
			t.ID, t.Description, t.NLExamples, t.Query, params, t.Tags,
			template.SemanticTags{
				Action:          t.SemanticTags.Action,
				PrimaryEntity:   t.SemanticTags.PrimaryEntity,
				SecondaryEntity: t.SemanticTags.SecondaryEntity,
				Qualifiers:      t.SemanticTags.Qualifiers,
			},
			template.Backend(t.Backend),
			t.Index, t.Endpoint, t.Source,
		)
		if err != nil {
			return nil, fmt.Errorf("template library %s: %w", path, err)
		}
		out = append(out, tpl)
	}
	return out, nil
}
