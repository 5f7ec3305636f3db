package main

import (
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"graphengine/application/batch"
	"graphengine/application/factories"
	"graphengine/application/router"
	"graphengine/infrastructure/host"
)

// newEngine builds a router over a freshly seeded library. Every run starts
// from the demo assets.
func newEngine(logger *zap.Logger) (*router.Router, *factories.Registry, error) {
	registry, err := factories.NewDefaultRegistry(logger)
	if err != nil {
		return nil, nil, err
	}
	lib := host.NewLibrary(nil, logger)
	if err := lib.Seed(registry); err != nil {
		return nil, nil, err
	}

	compiler := host.NewCompiler(logger)
	pipeline := batch.NewPipeline(registry, logger, batch.WithCompiler(compiler))
	r := router.NewRouter(lib, registry, logger,
		router.WithMiddleware(router.LoggingMiddleware(logger), router.ValidationMiddleware()))
	if err := router.NewHandlers(pipeline, compiler).Register(r); err != nil {
		return nil, nil, err
	}
	return r, registry, nil
}

// toJSON accepts a YAML or JSON document and returns it as JSON
func toJSON(data []byte) (json.RawMessage, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing payload: %w", err)
	}
	doc, err := normalize(doc)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("payload is empty")
	}
	return json.Marshal(doc)
}

// normalize turns the maps yaml.v3 produces into ones encoding/json accepts
func normalize(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, item := range t {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			t[k] = n
		}
		return t, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("payload key %v is not a string", k)
			}
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []interface{}:
		for i, item := range t {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			t[i] = n
		}
		return t, nil
	}
	return v, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
