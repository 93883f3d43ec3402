package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/schoolmaps/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	pointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PointOfInterest",
		Fields: graphql.Fields{
			"name":     &graphql.Field{Type: graphql.String},
			"label":    &graphql.Field{Type: graphql.String},
			"location": &graphql.Field{Type: geoPointType},
		},
	})

	alertType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Alert",
		Fields: graphql.Fields{
			"name":            &graphql.Field{Type: graphql.String},
			"distance_meters": &graphql.Field{Type: graphql.Float},
			"direction": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.AlertRecord).Direction.String(), nil
				},
			},
			"direction_label": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.AlertRecord).Direction.Label(), nil
				},
			},
		},
	})

	evaluationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Evaluation",
		Fields: graphql.Fields{
			"current":          &graphql.Field{Type: geoPointType},
			"threshold_meters": &graphql.Field{Type: graphql.Float},
			"alerts":           &graphql.Field{Type: graphql.NewList(alertType)},
			"evaluated_at": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*domain.Evaluation).EvaluatedAt.Format(time.RFC3339), nil
				},
			},
		},
	})

	markerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Marker",
		Fields: graphql.Fields{
			"name":     &graphql.Field{Type: graphql.String},
			"label":    &graphql.Field{Type: graphql.String},
			"location": &graphql.Field{Type: geoPointType},
		},
	})

	locationArgs := graphql.FieldConfigArgument{
		"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
	}
	argPoint := func(p graphql.ResolveParams) (domain.GeoPoint, error) {
		pt := domain.GeoPoint{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)}
		if !pt.InRange() {
			return pt, errors.New("lat must be -90..90 and lon -180..180")
		}
		return pt, nil
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"points": &graphql.Field{
				Type:        graphql.NewList(pointType),
				Description: "List points of interest in configured order",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					set, err := deps.Points.Set(p.Context)
					if err != nil {
						return nil, err
					}
					return set.Points(), nil
				},
			},
			"point": &graphql.Field{
				Type:        pointType,
				Description: "Get a point of interest by name",
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Points.Get(p.Context, p.Args["name"].(string))
				},
			},
			"proximity": &graphql.Field{
				Type:        evaluationType,
				Description: "Alerts for points closer than the threshold",
				Args: graphql.FieldConfigArgument{
					"lat":       locationArgs["lat"],
					"lon":       locationArgs["lon"],
					"threshold": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					current, err := argPoint(p)
					if err != nil {
						return nil, err
					}
					return deps.Proximity.Evaluate(p.Context, current, p.Args["threshold"].(float64))
				},
			},
			"markers": &graphql.Field{
				Type:        graphql.NewList(markerType),
				Description: "Map markers: the current position followed by every point",
				Args:        locationArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					current, err := argPoint(p)
					if err != nil {
						return nil, err
					}
					return deps.Proximity.Markers(p.Context, current)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
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
