// Package story drives the authoring side of a book: personalized ideas, the
// full manuscript, and the protagonist's character model.
package story

import (
	"context"

	"storywoven/pkg/flight"
	"storywoven/pkg/inference"
	"storywoven/pkg/registry"
	"storywoven/pkg/schema"
	"storywoven/pkg/storage"
	"storywoven/pkg/store"
	"storywoven/pkg/utils"
)

type Service struct {
	Adapter  inference.Adapter
	Store    store.Store
	Storage  storage.ObjectStorage
	Registry *registry.Service

	// Placeholder short-circuits model rendering with a deterministic solid
	// tile, for development without image-model credit spend.
	Placeholder bool

	// Ctx outlives request contexts so coalesced followers of an in-flight
	// model render are not cancelled by the first caller hanging up.
	Ctx context.Context

	modelParams *utils.SyncMap[map[string]ModelInput, string, ModelInput]
	modelFlight flight.Cache[string, schema.CharacterModel]
}

func NewService(ctx context.Context, adapter inference.Adapter, st store.Store, objects storage.ObjectStorage, reg *registry.Service) *Service {
	s := &Service{
		Adapter:     adapter,
		Store:       st,
		Storage:     objects,
		Registry:    reg,
		Ctx:         ctx,
		modelParams: utils.NewSyncMap[map[string]ModelInput](),
	}
	s.modelFlight = flight.NewCache(s.renderModel)
	return s
}
