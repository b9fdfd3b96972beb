package scheme

import (
	"context"
	"errors"
	"testing"
)

type fakeCatalog struct {
	schemes []Scheme
	err     error
}

func (f *fakeCatalog) GetActive(ctx context.Context, id string) (Scheme, error) {
	if f.err != nil {
		return Scheme{}, f.err
	}
	for _, s := range f.schemes {
		if s.ID == id && s.Active {
			return s, nil
		}
	}
	return Scheme{}, ErrNotFound
}

func (f *fakeCatalog) ListActive(ctx context.Context) ([]Scheme, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.schemes, nil
}

func TestListActive(t *testing.T) {
	catalog := &fakeCatalog{schemes: []Scheme{
		{ID: "sch-1", Name: "Deposit Protection Service", Active: true},
		{ID: "sch-2", Name: "My Deposits", Active: true},
	}}
	svc := NewService(catalog)

	schemes, err := svc.ListActive(context.Background())
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(schemes) != 2 || schemes[0].Name != "Deposit Protection Service" {
		t.Fatalf("unexpected schemes: %+v", schemes)
	}
}

func TestGetActive(t *testing.T) {
	catalog := &fakeCatalog{schemes: []Scheme{
		{ID: "sch-1", Name: "My Deposits", Active: true},
	}}
	svc := NewService(catalog)

	s, err := svc.GetActive(context.Background(), "sch-1")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if s.Name != "My Deposits" {
		t.Fatalf("unexpected scheme: %+v", s)
	}

	if _, err := svc.GetActive(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListActive_PropagatesError(t *testing.T) {
	dbErr := errors.New("connection reset")
	svc := NewService(&fakeCatalog{err: dbErr})

	if _, err := svc.ListActive(context.Background()); !errors.Is(err, dbErr) {
		t.Fatalf("expected repository error, got %v", err)
	}
}
