package domain

// Knowledge describes one queryable knowledge domain: its entities, vocabulary,
// curated HTTP sources, and canned responses. Loaded once at template-store
// load time and replaced wholesale on reload, never mutated.
type Knowledge struct {
	name              string
	entities          []Entity
	vocabulary        Vocabulary
	sources           map[string]Source
	noResultsResponse string
	errorResponse     string
}

// Entity is a named queryable entity with its searchable fields.
type Entity struct {
	Name             string
	SearchableFields []string
	CommonFilters    []string
	Aggregations     []string
}

// Vocabulary maps entities to their synonyms for embedding-text enrichment.
type Vocabulary struct {
	EntitySynonyms map[string][]string
}

// Source is a curated HTTP datasource. Templates reference sources by name;
// arbitrary URLs never reach the HTTP backend.
type Source struct {
	Name    string
	URL     string
	Formats []string
}

const (
	defaultNoResults = "No relevant results were found for your query."
	defaultError     = "No information is available for this request right now."
)

// NewKnowledge creates an immutable knowledge domain.
func NewKnowledge(
	name string,
	entities []Entity,
	vocabulary Vocabulary,
	sources []Source,
	noResultsResponse, errorResponse string,
) Knowledge {
	if noResultsResponse == "" {
		noResultsResponse = defaultNoResults
	}
	if errorResponse == "" {
		errorResponse = defaultError
	}
	srcMap := make(map[string]Source, len(sources))
	for _, s := range sources {
		srcMap[s.Name] = s
	}
	return Knowledge{
		name:              name,
		entities:          entities,
		vocabulary:        vocabulary,
		sources:           srcMap,
		noResultsResponse: noResultsResponse,
		errorResponse:     errorResponse,
	}
}

// Name returns the domain name.
func (k Knowledge) Name() string { return k.name }

// Entities returns the domain entities.
func (k Knowledge) Entities() []Entity { return k.entities }

// Synonyms returns the synonym list for an entity, or nil.
func (k Knowledge) Synonyms(entity string) []string {
	return k.vocabulary.EntitySynonyms[entity]
}

// SourceByName resolves a curated HTTP source.
func (k Knowledge) SourceByName(name string) (Source, bool) {
	s, ok := k.sources[name]
	return s, ok
}

// NoResultsResponse returns the canned empty-result message.
func (k Knowledge) NoResultsResponse() string { return k.noResultsResponse }

// ErrorResponse returns the canned failure message.
func (k Knowledge) ErrorResponse() string { return k.errorResponse }
