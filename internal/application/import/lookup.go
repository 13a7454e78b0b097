package importapp

import (
	"context"
	"strconv"
	"strings"

	"github.com/erp/portal/internal/application/fanout"
	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/erp/portal/internal/infrastructure/logger"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// Cache keys of the reference lists
const (
	ItemGroupsCacheKey    = "references:item-groups"
	ManufacturersCacheKey = "references:manufacturers"
)

// ReferenceLookup holds the SAP reference lists used to resolve foreign keys
// during one import. It is a snapshot and never persisted.
type ReferenceLookup struct {
	ItemGroups    []masterdata.ItemGroup    `json:"itemGroups"`
	Manufacturers []masterdata.Manufacturer `json:"manufacturers"`
	// Unavailable names the lists that could not be fetched and are empty
	Unavailable []string `json:"-"`
}

// Note tells the user which lists were missing, or is empty
func (l ReferenceLookup) Note() string {
	if len(l.Unavailable) == 0 {
		return ""
	}
	return "Reference lists unavailable from SAP: " + strings.Join(l.Unavailable, ", ")
}

// ItemGroup resolves ref by numeric code or by case-folded name
func (l ReferenceLookup) ItemGroup(ref string) (masterdata.ItemGroup, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return masterdata.ItemGroup{}, false
	}
	code, codeErr := strconv.Atoi(ref)
	for _, g := range l.ItemGroups {
		if (codeErr == nil && g.Code == code) || sameName(g.Name, ref) {
			return g, true
		}
	}
	return masterdata.ItemGroup{}, false
}

// Manufacturer resolves ref by numeric code or by case-folded name
func (l ReferenceLookup) Manufacturer(ref string) (masterdata.Manufacturer, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return masterdata.Manufacturer{}, false
	}
	code, codeErr := strconv.Atoi(ref)
	for _, m := range l.Manufacturers {
		if (codeErr == nil && m.Code == code) || sameName(m.Name, ref) {
			return m, true
		}
	}
	return masterdata.Manufacturer{}, false
}

func sameName(a, b string) bool {
	c := cases.Fold()
	return c.String(strings.TrimSpace(a)) == c.String(strings.TrimSpace(b))
}

// ReferenceSource reads the reference lists from SAP
type ReferenceSource interface {
	ItemGroups(ctx context.Context) ([]masterdata.ItemGroup, error)
	Manufacturers(ctx context.Context) ([]masterdata.Manufacturer, error)
}

// ReferenceProvider loads a ReferenceLookup through the tag cache
type ReferenceProvider struct {
	source ReferenceSource
	cache  cache.TagCache
	logger *zap.Logger
}

// NewReferenceProvider creates a ReferenceProvider
func NewReferenceProvider(source ReferenceSource, c cache.TagCache, l *zap.Logger) *ReferenceProvider {
	if l == nil {
		l = zap.NewNop()
	}
	return &ReferenceProvider{source: source, cache: c, logger: l}
}

// Load fetches both lists concurrently. A list that cannot be fetched is
// empty in the lookup and named in its Unavailable field.
func (p *ReferenceProvider) Load(ctx context.Context) ReferenceLookup {
	log := logger.Or(ctx, p.logger)

	var g fanout.Group
	groups := fanout.Go(ctx, &g, []masterdata.ItemGroup{}, p.ItemGroups)
	manufacturers := fanout.Go(ctx, &g, []masterdata.Manufacturer{}, p.Manufacturers)
	g.Wait()

	var unavailable []string
	if groups.Failed() {
		unavailable = append(unavailable, "item_groups")
		log.Warn("Item groups unavailable, continuing without them", zap.Error(groups.Err))
	}
	if manufacturers.Failed() {
		unavailable = append(unavailable, "manufacturers")
		log.Warn("Manufacturers unavailable, continuing without them", zap.Error(manufacturers.Err))
	}
	return ReferenceLookup{
		ItemGroups:    groups.Value,
		Manufacturers: manufacturers.Value,
		Unavailable:   unavailable,
	}
}

// ItemGroups returns the cached item group list
func (p *ReferenceProvider) ItemGroups(ctx context.Context) ([]masterdata.ItemGroup, error) {
	return cache.GetOrLoad(ctx, p.cache, p.logger, ItemGroupsCacheKey, []string{cache.TagReferences}, p.source.ItemGroups)
}

// Manufacturers returns the cached manufacturer list
func (p *ReferenceProvider) Manufacturers(ctx context.Context) ([]masterdata.Manufacturer, error) {
	return cache.GetOrLoad(ctx, p.cache, p.logger, ManufacturersCacheKey, []string{cache.TagReferences}, p.source.Manufacturers)
}
