package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_food/internal/domain"
	"github.com/fjod/go_food/internal/repository"
)

// SelectionInput is a customization choice as the client names it.
type SelectionInput struct {
	Option string `json:"option" validate:"required"`
	Choice string `json:"choice" validate:"required"`
}

// lineResolver prices cart lines against the current catalog.
type lineResolver struct {
	catalog repository.CatalogRepository
}

func (r lineResolver) product(ctx context.Context, productID string) (*domain.Product, error) {
	p, err := r.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, domain.NotFound("product not found")
		}
		return nil, fmt.Errorf("get product %s: %w", productID, err)
	}
	return p, nil
}

// selections prices the chosen customizations. It rejects unknown options and
// choices, repeated options and missing required options.
func selections(p *domain.Product, in []SelectionInput) ([]domain.Selection, error) {
	out := make([]domain.Selection, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if seen[s.Option] {
			return nil, domain.BadRequest("customization %q selected more than once", s.Option)
		}
		seen[s.Option] = true

		opt, ok := p.Option(s.Option)
		if !ok {
			return nil, domain.BadRequest("unknown customization %q for %s", s.Option, p.Name)
		}
		choice, ok := opt.Choice(s.Choice)
		if !ok {
			return nil, domain.BadRequest("unknown choice %q for %s", s.Choice, s.Option)
		}
		out = append(out, domain.Selection{Option: opt.Name, Choice: choice.Name, PriceModifier: choice.PriceModifier})
	}
	for _, opt := range p.CustomizationOptions {
		if opt.Required && !seen[opt.Name] {
			return nil, domain.BadRequest("customization %q is required for %s", opt.Name, p.Name)
		}
	}
	return out, nil
}

// addOns prices the chosen add-ons. Each must be offered by the product, exist and
// be available.
func (r lineResolver) addOns(ctx context.Context, p *domain.Product, ids []string) ([]domain.AddOnSelection, error) {
	out := make([]domain.AddOnSelection, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		if !p.OffersAddOn(id) {
			return nil, domain.BadRequest("add-on %s is not offered for %s", id, p.Name)
		}
		a, err := r.catalog.GetAddOn(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrAddOnNotFound) {
				return nil, domain.NotFound("add-on not found")
			}
			return nil, fmt.Errorf("get add-on %s: %w", id, err)
		}
		if !a.IsAvailable {
			return nil, domain.InvalidState("add-on %s is currently unavailable", a.Name)
		}
		out = append(out, domain.AddOnSelection{ID: a.ID, Name: a.Name, Price: a.Price})
	}
	return out, nil
}

// NewLine builds a fully priced cart line or fails with the first problem found.
func (r lineResolver) NewLine(ctx context.Context, productID string, quantity int, in []SelectionInput, addOnIDs []string, notes string, now time.Time) (domain.CartItem, *domain.Product, error) {
	p, err := r.product(ctx, productID)
	if err != nil {
		return domain.CartItem{}, nil, err
	}
	if !p.IsAvailable {
		return domain.CartItem{}, nil, domain.InvalidState("%s is currently unavailable", p.Name)
	}
	sel, err := selections(p, in)
	if err != nil {
		return domain.CartItem{}, nil, err
	}
	adds, err := r.addOns(ctx, p, addOnIDs)
	if err != nil {
		return domain.CartItem{}, nil, err
	}

	unit := domain.UnitPrice(p.BasePrice, sel, adds)
	return domain.CartItem{
		ID:            repository.NewID(),
		ProductID:     p.ID,
		ProductName:   p.Name,
		Quantity:      quantity,
		Customization: sel,
		AddOns:        adds,
		Notes:         notes,
		UnitPrice:     unit,
		TotalPrice:    domain.LineTotal(unit, quantity),
		AddedAt:       now,
	}, p, nil
}

// Reprice refreshes a stored line at current catalog prices without failing on
// catalog drift: it reports why the line can no longer be bought, or returns the
// repriced line with vanished choices and unavailable add-ons dropped when
// lenient is set.
func (r lineResolver) Reprice(ctx context.Context, item domain.CartItem, lenient bool) (domain.CartItem, string, error) {
	p, err := r.catalog.GetProduct(ctx, item.ProductID)
	if errors.Is(err, repository.ErrProductNotFound) {
		return item, "product no longer exists", nil
	}
	if err != nil {
		return item, "", fmt.Errorf("get product %s: %w", item.ProductID, err)
	}
	if !p.IsAvailable {
		return item, "product is unavailable", nil
	}

	sel := make([]domain.Selection, 0, len(item.Customization))
	chosen := make(map[string]bool, len(item.Customization))
	for _, s := range item.Customization {
		opt, ok := p.Option(s.Option)
		if !ok {
			if lenient {
				continue
			}
			return item, fmt.Sprintf("customization %s is no longer offered", s.Option), nil
		}
		choice, ok := opt.Choice(s.Choice)
		if !ok {
			if lenient {
				continue
			}
			return item, fmt.Sprintf("choice %s for %s is no longer offered", s.Choice, s.Option), nil
		}
		chosen[opt.Name] = true
		sel = append(sel, domain.Selection{Option: opt.Name, Choice: choice.Name, PriceModifier: choice.PriceModifier})
	}
	for _, opt := range p.CustomizationOptions {
		if opt.Required && !chosen[opt.Name] {
			return item, fmt.Sprintf("customization %s is now required", opt.Name), nil
		}
	}

	adds := make([]domain.AddOnSelection, 0, len(item.AddOns))
	for _, a := range item.AddOns {
		current, err := r.catalog.GetAddOn(ctx, a.ID)
		if err != nil && !errors.Is(err, repository.ErrAddOnNotFound) {
			return item, "", fmt.Errorf("get add-on %s: %w", a.ID, err)
		}
		if err != nil || !current.IsAvailable || !p.OffersAddOn(a.ID) {
			if lenient {
				continue
			}
			return item, fmt.Sprintf("add-on %s is unavailable", a.Name), nil
		}
		adds = append(adds, domain.AddOnSelection{ID: current.ID, Name: current.Name, Price: current.Price})
	}

	out := item
	out.ProductName = p.Name
	out.Customization = sel
	out.AddOns = adds
	out.UnitPrice = domain.UnitPrice(p.BasePrice, sel, adds)
	out.TotalPrice = domain.LineTotal(out.UnitPrice, out.Quantity)
	return out, "", nil
}
