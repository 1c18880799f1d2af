package wikidata

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/knakk/sparql"

	"escolas-wikidata/metrics"
	"escolas-wikidata/utils"
)

const (
	querySchoolByINEP       = "school-by-inep"
	queryMunicipalityByIBGE = "municipality-by-ibge"
)

const queries = `
# tag: school-by-inep
SELECT ?item WHERE {
  ?item wdt:{{.InstanceOf}}/wdt:{{.SubclassOf}}* wd:{{.Class}} ;
        wdt:{{.Property}} "{{.Code}}" .
}
LIMIT 1

# tag: municipality-by-ibge
SELECT ?item WHERE {
  ?item wdt:{{.Property}} "{{.Code}}" .
}
LIMIT 1
`

var digitsRegexp = regexp.MustCompile(`^\d+$`)

// QueryService answers existence and lookup questions against the Wikidata
// Query Service. knakk/sparql has no context support, so ctx is only
// checked before each query and during retry back-off.
type QueryService struct {
	repo         *sparql.Repo
	bank         sparql.Bank
	inepProperty string
	retry        *utils.RetryConfig
	logger       *utils.Logger
	metrics      *metrics.Metrics

	mu             sync.Mutex
	municipalities map[string]string
}

// NewQueryService connects a SPARQL repo to endpoint.
func NewQueryService(endpoint, inepProperty string, timeout time.Duration, retry *utils.RetryConfig, logger *utils.Logger, m *metrics.Metrics) (*QueryService, error) {
	repo, err := sparql.NewRepo(endpoint, sparql.Timeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("wikidata: sparql repo: %w", err)
	}

	return &QueryService{
		repo:           repo,
		bank:           sparql.LoadBank(bytes.NewBufferString(queries)),
		inepProperty:   inepProperty,
		retry:          retry,
		logger:         logger,
		metrics:        m,
		municipalities: make(map[string]string),
	}, nil
}

// SchoolQuery renders the existence query for one INEP code.
func (q *QueryService) SchoolQuery(code string) (string, error) {
	if !digitsRegexp.MatchString(code) {
		return "", fmt.Errorf("wikidata: refusing to query non-numeric code %q", code)
	}
	return q.bank.Prepare(querySchoolByINEP, struct{ InstanceOf, SubclassOf, Class, Property, Code string }{
		PropInstanceOf, PropSubclassOf, ItemSchool, q.inepProperty, code,
	})
}

// Lookup returns the QID of a school item carrying the INEP code, if any.
func (q *QueryService) Lookup(ctx context.Context, code string) (string, bool, error) {
	query, err := q.SchoolQuery(code)
	if err != nil {
		return "", false, err
	}
	return q.firstItem(ctx, querySchoolByINEP, query)
}

// Resolve returns the municipality item for a 7-digit IBGE code. Results,
// including misses, are cached for the lifetime of the service.
func (q *QueryService) Resolve(ctx context.Context, ibgeCode string) (string, bool, error) {
	if !digitsRegexp.MatchString(ibgeCode) {
		return "", false, fmt.Errorf("wikidata: refusing to query non-numeric code %q", ibgeCode)
	}

	q.mu.Lock()
	qid, cached := q.municipalities[ibgeCode]
	q.mu.Unlock()
	if cached {
		return qid, qid != "", nil
	}

	query, err := q.bank.Prepare(queryMunicipalityByIBGE, struct{ Property, Code string }{
		PropIBGEMunicipality, ibgeCode,
	})
	if err != nil {
		return "", false, err
	}

	qid, found, err := q.firstItem(ctx, queryMunicipalityByIBGE, query)
	if err != nil {
		return "", false, err
	}

	q.mu.Lock()
	q.municipalities[ibgeCode] = qid
	q.mu.Unlock()
	return qid, found, nil
}

func (q *QueryService) firstItem(ctx context.Context, name, query string) (string, bool, error) {
	var qid string
	var found bool

	err := q.retry.Do(ctx, "sparql "+name, func() error {
		if err := ctx.Err(); err != nil {
			return utils.Permanent(err)
		}

		res, err := q.repo.Query(query)
		q.metrics.ObserveQuery(name, err)
		if err != nil {
			return fmt.Errorf("wikidata: sparql query: %w", err)
		}

		qid, found = "", false
		for _, solution := range res.Solutions() {
			term, ok := solution["item"]
			if !ok {
				continue
			}
			qid = entityID(term.String())
			found = qid != ""
			break
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}

	q.logger.Debug("[sparql] %s -> found=%v %s", name, found, qid)
	return qid, found, nil
}

// entityID strips the entity IRI prefix: "http://www.wikidata.org/entity/Q1" -> "Q1".
func entityID(iri string) string {
	iri = strings.Trim(iri, "<>")
	if !strings.HasPrefix(iri, EntityPrefix) {
		return ""
	}
	return strings.TrimPrefix(iri, EntityPrefix)
}
