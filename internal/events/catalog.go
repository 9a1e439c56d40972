package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"Wulin-Chronicle/server/internal/state"
	"Wulin-Chronicle/server/internal/triggers"
)

// TriggerSpec is the trigger declared by a catalog entry: either a bare
// identifier (or expression) string, or an object with an id and arguments.
type TriggerSpec struct {
	ID         string `json:"id"`
	Args       []any  `json:"args,omitempty"`
	Expression string `json:"expression,omitempty"`
}

func (t *TriggerSpec) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		*t = TriggerSpec{ID: bare}
		return nil
	}
	type plain TriggerSpec
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("trigger must be a string or an object: %w", err)
	}
	*t = TriggerSpec(obj)
	return nil
}

func (t TriggerSpec) config() triggers.Config {
	return triggers.Config{ID: t.ID, Args: t.Args, Expression: t.Expression}
}

// Definition is one catalog entry before its trigger is bound.
type Definition struct {
	ID          string              `json:"id"`
	Type        state.EventCategory `json:"type"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Trigger     TriggerSpec         `json:"trigger"`
	Choices     []state.EventChoice `json:"choices,omitempty"`
	Once        bool                `json:"once,omitempty"`
}

// Catalog supplies the merged event definitions.
type Catalog interface {
	Load(ctx context.Context) ([]Definition, error)
}

// StaticCatalog serves a fixed list.
type StaticCatalog []Definition

func (c StaticCatalog) Load(context.Context) ([]Definition, error) {
	return append([]Definition(nil), c...), nil
}

// FileCatalog concatenates JSON arrays of definitions. The first path is the
// base catalog; later paths add to it in order.
type FileCatalog struct {
	Paths  []string
	Logger zerolog.Logger
}

func (c FileCatalog) Load(ctx context.Context) ([]Definition, error) {
	var merged []Definition
	for i, path := range c.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && i > 0 {
				continue
			}
			c.Logger.Warn().Err(err).Str("path", path).Msg("could not read event catalog")
			continue
		}
		var defs []Definition
		if err := json.Unmarshal(data, &defs); err != nil {
			c.Logger.Warn().Err(err).Str("path", path).Msg("could not parse event catalog")
			continue
		}
		merged = append(merged, defs...)
		c.Logger.Info().Str("path", path).Int("events", len(defs)).Msg("merged event catalog")
	}
	return merged, nil
}
