package entry

import (
	"fmt"

	"github.com/lib/pq"

	"github.com/lgoty/benefitsearch/internal/domain"
	"github.com/lgoty/benefitsearch/internal/domain/catalog"
	domentry "github.com/lgoty/benefitsearch/internal/domain/entry"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (domentry.Entry, error) {
	var (
		id, recordID int64
		kind, title  string
		groups       pq.StringArray
		regions      pq.StringArray
		active       bool
		emb          []byte
	)
	if err := s.Scan(&id, &kind, &recordID, &title, &groups, &regions, &active, &emb); err != nil {
		return domentry.Entry{}, err //nolint:wrapcheck // caller classifies
	}
	return toDomain(id, kind, recordID, title, groups, regions, active, emb)
}

func toDomain(id int64, kind string, recordID int64, title string, groups, regions []string, active bool, emb []byte) (domentry.Entry, error) {
	k, err := catalog.ParseKind(kind)
	if err != nil {
		return domentry.Entry{}, fmt.Errorf("entry %d: %w", id, err)
	}
	ref, err := catalog.NewRef(k, recordID)
	if err != nil {
		return domentry.Entry{}, fmt.Errorf("entry %d: %w", id, err)
	}
	var vec []float32
	if emb != nil {
		vec, err = domain.DecodeVector(emb)
		if err != nil {
			return domentry.Entry{}, fmt.Errorf("entry %d: %w", id, err)
		}
	}
	return domentry.Reconstruct(id, ref, title, nonNil(groups), nonNil(regions), active, vec), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
