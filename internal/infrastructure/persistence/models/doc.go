// Package models contains GORM persistence models. Domain entities carry no
// ORM tags; each model converts to and from its entity with ToDomain and a
// FromDomain constructor.
//
// Natural keys are unique among live rows only (partial indexes on
// lifecycle <> 'deleted'), so a soft-deleted code can be created again.
package models
