package core

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/segmentio/encoding/json"

	"github.com/diamondlightsource/glazed/tiled"
)

type contextKey string

const authContextKey contextKey = "glazed-authorization"

// WithAuth stores the caller's raw Authorization header value so resolvers
// can forward it to Tiled.
func WithAuth(ctx context.Context, auth string) context.Context {
	if auth == "" {
		return ctx
	}
	return context.WithValue(ctx, authContextKey, auth)
}

func AuthFromContext(ctx context.Context) string {
	auth, _ := ctx.Value(authContextKey).(string)
	return auth
}

// GraphQL exposes the Tiled catalog as a query schema: instrument sessions
// contain runs, runs contain array and table datasets, arrays carry
// downloadable assets.
type GraphQL struct {
	schema   graphql.Schema
	renderer *Renderer
	public   *url.URL
}

type sessionSource struct {
	name string
}

type runSource struct {
	data tiled.Data
}

type arrayData struct {
	runID  string
	stream string
	id     string
	attrs  tiled.Attributes
}

type tableData struct {
	id    string
	attrs tiled.Attributes
}

type assetSource struct {
	data  *arrayData
	asset tiled.Asset
}

// jsonScalar carries table data through as-is; column values are opaque to
// the schema.
var jsonScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "Arbitrary JSON value",
	Serialize: func(value interface{}) interface{} {
		return value
	},
	ParseValue: func(value interface{}) interface{} {
		return value
	},
	ParseLiteral: func(valueAST ast.Value) interface{} {
		return valueAST.GetValue()
	},
})

func NewGraphQL(client *tiled.Client, public *url.URL, renderer *Renderer) (*GraphQL, error) {
	appMetadataType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AppMetadata",
		Fields: graphql.Fields{
			"apiVersion": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(tiled.AppMetadata).APIVersion, nil
				},
			},
		},
	})

	assetType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Asset",
		Fields: graphql.Fields{
			"file": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(assetSource).asset.DataURI, nil
				},
			},
			"download": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					source := p.Source.(assetSource)
					if source.asset.ID == nil {
						return nil, nil
					}
					u := public.JoinPath(
						"asset",
						source.data.runID,
						source.data.stream,
						source.data.id,
						strconv.FormatInt(*source.asset.ID, 10),
					)
					return u.String(), nil
				},
			},
		},
	})

	arrayType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ArrayData",
		Fields: graphql.Fields{
			"name": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*arrayData).id, nil
				},
			},
			"files": &graphql.Field{
				Type: graphql.NewList(assetType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					source := p.Source.(*arrayData)
					assets := source.attrs.Assets()
					files := make([]assetSource, 0, len(assets))
					for _, asset := range assets {
						files = append(files, assetSource{data: source, asset: asset})
					}
					return files, nil
				},
			},
		},
	})

	tableType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TableData",
		Fields: graphql.Fields{
			"name": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*tableData).id, nil
				},
			},
			"columns": &graphql.Field{
				Type: graphql.NewList(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					structure, err := p.Source.(*tableData).attrs.TableStructure()
					if err != nil {
						return nil, err
					}
					return structure.Columns, nil
				},
			},
			"data": &graphql.Field{
				Type: jsonScalar,
				Args: graphql.FieldConfigArgument{
					"columns": &graphql.ArgumentConfig{
						Type: graphql.NewList(graphql.String),
					},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					source := p.Source.(*tableData)

					var columns []string
					if raw, ok := p.Args["columns"].([]interface{}); ok {
						for _, col := range raw {
							if s, ok := col.(string); ok {
								columns = append(columns, s)
							}
						}
					}

					path := strings.Join(append(append([]string{}, source.attrs.Ancestors...), source.id), "/")
					return client.TableFull(p.Context, path, columns, AuthFromContext(p.Context))
				},
			},
		},
	})

	runDataType := graphql.NewUnion(graphql.UnionConfig{
		Name:  "RunData",
		Types: []*graphql.Object{arrayType, tableType},
		ResolveType: func(p graphql.ResolveTypeParams) *graphql.Object {
			switch p.Value.(type) {
			case *arrayData:
				return arrayType
			case *tableData:
				return tableType
			}
			return nil
		},
	})

	runType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Run",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(runSource).data.ID, nil
				},
			},
			"scanNumber": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					attrs := p.Source.(runSource).data.Attributes
					if attrs.StructureFamily != tiled.FamilyContainer {
						return nil, nil
					}
					meta, err := attrs.ContainerMetadata()
					if err != nil || meta.Start == nil {
						return nil, nil
					}
					return meta.Start.ScanID, nil
				},
			},
			"data": &graphql.Field{
				Type: graphql.NewList(runDataType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					run := p.Source.(runSource)
					auth := AuthFromContext(p.Context)

					streams, err := client.Search(p.Context, run.data.ID, auth, url.Values{
						"include_data_sources": {"true"},
					})
					if err != nil {
						return nil, err
					}

					var sources []interface{}
					for _, stream := range streams.Data {
						datasets, err := client.Search(p.Context, run.data.ID+"/"+stream.ID, auth, url.Values{
							"include_data_sources": {"true"},
						})
						if err != nil {
							return nil, err
						}
						for _, dataset := range datasets.Data {
							switch dataset.Attributes.StructureFamily {
							case tiled.FamilyArray:
								sources = append(sources, &arrayData{
									runID:  run.data.ID,
									stream: stream.ID,
									id:     dataset.ID,
									attrs:  dataset.Attributes,
								})
							case tiled.FamilyTable:
								sources = append(sources, &tableData{
									id:    dataset.ID,
									attrs: dataset.Attributes,
								})
							}
						}
					}
					return sources, nil
				},
			},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "InstrumentSession",
		Fields: graphql.Fields{
			"name": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(sessionSource).name, nil
				},
			},
			"runs": &graphql.Field{
				Type: graphql.NewList(runType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session := p.Source.(sessionSource)
					root, err := client.Search(p.Context, "", AuthFromContext(p.Context), url.Values{
						"filter[eq][condition][key]":   {"start.instrument_session"},
						"filter[eq][condition][value]": {`"` + session.name + `"`},
						"include_data_sources":         {"true"},
					})
					if err != nil {
						return nil, err
					}

					runs := make([]runSource, 0, len(root.Data))
					for _, data := range root.Data {
						runs = append(runs, runSource{data: data})
					}
					return runs, nil
				},
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"appMetadata": &graphql.Field{
				Type: appMetadataType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return client.AppMetadata(p.Context)
				},
			},
			"instrumentSession": &graphql.Field{
				Type: sessionType,
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(graphql.String),
					},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return sessionSource{name: p.Args["name"].(string)}, nil
				},
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
	if err != nil {
		return nil, err
	}

	return &GraphQL{schema: schema, renderer: renderer, public: public}, nil
}

type graphqlRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// ServeHTTP executes POSTed queries. GET gets a rendered warning page with
// a 405: browsers hitting /graphql directly is common enough to deserve a
// readable answer.
func (g *GraphQL) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		g.renderPage(w, "graphql_get_warning.html", http.StatusMethodNotAllowed, nil)
		return
	}

	var req graphqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         g.schema,
		RequestString:  req.Query,
		OperationName:  req.OperationName,
		VariableValues: req.Variables,
		Context:        WithAuth(r.Context(), r.Header.Get("Authorization")),
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GraphiQL serves the interactive console pointed at the public endpoint.
func (g *GraphQL) GraphiQL(w http.ResponseWriter, r *http.Request) {
	endpoint := g.public.JoinPath("graphql").String()
	g.renderPage(w, "graphiql.html", http.StatusOK, map[string]interface{}{
		"Endpoint": endpoint,
	})
}

func (g *GraphQL) renderPage(w http.ResponseWriter, name string, status int, data interface{}) {
	body, err := g.renderer.Render(name, data)
	if err != nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}
