package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/core/usecases"
	"github.com/samirrijal/chicrime/internal/hotspot"
	"github.com/samirrijal/chicrime/internal/timeseries"
)

// buildSchema creates the GraphQL schema wired to our services. Struct
// results resolve through their json tags.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	categoryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "CategoryCount",
		Fields: graphql.Fields{
			"category": &graphql.Field{Type: graphql.String},
			"count":    &graphql.Field{Type: graphql.Int},
		},
	})

	hotspotType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Hotspot",
		Fields: graphql.Fields{
			"id":                 &graphql.Field{Type: graphql.Int},
			"centroid":           &graphql.Field{Type: geoPointType},
			"area_sq_km":         &graphql.Field{Type: graphql.Float},
			"density_score":      &graphql.Field{Type: graphql.Float},
			"member_count":       &graphql.Field{Type: graphql.Int},
			"boundary":           &graphql.Field{Type: graphql.NewList(geoPointType)},
			"crime_count":        &graphql.Field{Type: graphql.Int},
			"crimes_per_sq_km":   &graphql.Field{Type: graphql.Float},
			"peak_hour":          &graphql.Field{Type: graphql.Int},
			"weekend_percentage": &graphql.Field{Type: graphql.Float},
			"top_crime_types":    &graphql.Field{Type: graphql.NewList(categoryType)},
		},
	})

	reportType := graphql.NewObject(graphql.ObjectConfig{
		Name: "HotspotReport",
		Fields: graphql.Fields{
			"run_id":             &graphql.Field{Type: graphql.String},
			"incident_count":     &graphql.Field{Type: graphql.Int},
			"threshold":          &graphql.Field{Type: graphql.Float},
			"high_density_count": &graphql.Field{Type: graphql.Int},
			"warnings":           &graphql.Field{Type: graphql.NewList(graphql.String)},
			"hotspots":           &graphql.Field{Type: graphql.NewList(hotspotType)},
		},
	})

	typeCountType := graphql.NewObject(graphql.ObjectConfig{
		Name: "CrimeTypeCount",
		Fields: graphql.Fields{
			"primary_type": &graphql.Field{Type: graphql.String},
			"count":        &graphql.Field{Type: graphql.Int},
			"percentage":   &graphql.Field{Type: graphql.Float},
		},
	})

	monthlyType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MonthlyCount",
		Fields: graphql.Fields{
			"year":  &graphql.Field{Type: graphql.Int},
			"month": &graphql.Field{Type: graphql.Int},
			"count": &graphql.Field{Type: graphql.Int},
		},
	})

	forecastType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Forecast",
		Fields: graphql.Fields{
			"mae":         &graphql.Field{Type: graphql.Float},
			"trend_slope": &graphql.Field{Type: graphql.Float},
			"forecasts": &graphql.Field{Type: graphql.NewList(graphql.NewObject(graphql.ObjectConfig{
				Name: "ForecastPoint",
				Fields: graphql.Fields{
					"date":            &graphql.Field{Type: graphql.String},
					"forecast":        &graphql.Field{Type: graphql.Int},
					"trend_component": &graphql.Field{Type: graphql.Float},
					"seasonal_factor": &graphql.Field{Type: graphql.Float},
				},
			}))},
		},
	})

	resultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SweepResult",
		Fields: graphql.Fields{
			"value":                  &graphql.Field{Type: graphql.Float},
			"num_hotspots":           &graphql.Field{Type: graphql.Int},
			"total_area_sq_km":       &graphql.Field{Type: graphql.Float},
			"coverage_percentage":    &graphql.Field{Type: graphql.Float},
			"avg_hotspot_size_sq_km": &graphql.Field{Type: graphql.Float},
			"crimes_in_hotspots":     &graphql.Field{Type: graphql.Int},
			"efficiency":             &graphql.Field{Type: graphql.Float},
		},
	})

	experimentType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ExperimentRun",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"parameter":      &graphql.Field{Type: graphql.String},
			"best_value":     &graphql.Field{Type: graphql.Float},
			"incident_count": &graphql.Field{Type: graphql.Int},
			"results":        &graphql.Field{Type: graphql.NewList(resultType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"hotspots": &graphql.Field{
				Type:        reportType,
				Description: "Detect density hotspots over stored incidents",
				Args: graphql.FieldConfigArgument{
					"bandwidth":  &graphql.ArgumentConfig{Type: graphql.Float},
					"threshold":  &graphql.ArgumentConfig{Type: graphql.Float},
					"grid_size":  &graphql.ArgumentConfig{Type: graphql.Int},
					"min_points": &graphql.ArgumentConfig{Type: graphql.Int},
					"crime_type": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					q := hotspotQueryFromArgs(p.Args, deps.Hotspots.Defaults())
					if err := checkConfig(q.Config); err != nil {
						return nil, err
					}
					rep, err := deps.Hotspots.Detect(p.Context, q)
					if usecases.IsNoData(err) {
						return map[string]interface{}{"incident_count": 0, "hotspots": []interface{}{}}, nil
					}
					if err != nil {
						return nil, err
					}
					return reportToGraph(rep), nil
				},
			},
			"crimeTypes": &graphql.Field{
				Type:        graphql.NewList(typeCountType),
				Description: "Crime counts per primary type",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Crimes.Types(p.Context)
				},
			},
			"monthlyStats": &graphql.Field{
				Type:        graphql.NewList(monthlyType),
				Description: "Crime counts for the latest twelve months",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Crimes.Monthly(p.Context)
				},
			},
			"forecast": &graphql.Field{
				Type:        forecastType,
				Description: "Monthly crime projection",
				Args: graphql.FieldConfigArgument{
					"periods": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: timeseries.DefaultPeriods},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					periods, _ := p.Args["periods"].(int)
					if periods < 1 || periods > timeseries.MaxPeriods {
						return nil, fmt.Errorf("periods must be between 1 and %d", timeseries.MaxPeriods)
					}
					return deps.Analysis.Forecast(p.Context, periods)
				},
			},
			"experiment": &graphql.Field{
				Type:        experimentType,
				Description: "A stored parameter sweep",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Experiments.Get(p.Context, p.Args["id"].(string))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func hotspotQueryFromArgs(args map[string]interface{}, defaults hotspot.Config) usecases.HotspotQuery {
	q := usecases.HotspotQuery{Config: defaults, Analyze: true}
	if v, ok := args["bandwidth"].(float64); ok {
		q.Config.Bandwidth = v
	}
	if v, ok := args["threshold"].(float64); ok {
		q.Config.ThresholdPercentile = v
	}
	if v, ok := args["grid_size"].(int); ok {
		q.Config.GridResolution = v
	}
	if v, ok := args["min_points"].(int); ok {
		q.Config.MinPoints = v
	}
	if v, ok := args["crime_type"].(string); ok && v != "" {
		q.Filter.CrimeType = strings.ToUpper(v)
	}
	return q
}

// reportToGraph flattens hotspot summaries so analysis fields sit beside
// the geometry.
func reportToGraph(rep *domain.HotspotReport) map[string]interface{} {
	spots := make([]map[string]interface{}, len(rep.Hotspots))
	for i, h := range rep.Hotspots {
		boundary := []hotspot.Point{}
		if len(h.Boundary) > 0 {
			for _, pt := range h.Boundary[0] {
				boundary = append(boundary, hotspot.Point{Lat: pt.Lat(), Lon: pt.Lon()})
			}
		}
		m := map[string]interface{}{
			"id":            h.ID,
			"centroid":      h.Centroid,
			"area_sq_km":    h.AreaSqKm,
			"density_score": h.DensityScore,
			"member_count":  h.MemberCount,
			"boundary":      boundary,
		}
		if a := h.Analysis; a != nil {
			m["crime_count"] = a.CrimeCount
			m["crimes_per_sq_km"] = a.CrimesPerSqKm
			m["top_crime_types"] = a.TopCategories
			if a.PeakHour != nil {
				m["peak_hour"] = *a.PeakHour
			}
			if a.WeekendPercentage != nil {
				m["weekend_percentage"] = *a.WeekendPercentage
			}
		}
		spots[i] = m
	}
	return map[string]interface{}{
		"run_id":             rep.RunID,
		"incident_count":     rep.IncidentCount,
		"threshold":          rep.Threshold,
		"high_density_count": rep.HighDensityCount,
		"warnings":           rep.Warnings,
		"hotspots":           spots,
	}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
