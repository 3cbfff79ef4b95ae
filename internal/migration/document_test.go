package migration

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"mongo-migrations/internal/domain"
)

func TestDocumentID(t *testing.T) {
	oid, err := primitive.ObjectIDFromHex("5d2dbdd31f326a50ac81b9b3")
	if err != nil {
		t.Fatal(err)
	}

	if got := DocumentID(bson.D{{Key: "name", Value: "x"}, {Key: "_id", Value: oid}}); got != oid {
		t.Errorf("want %v, got %v", oid, got)
	}
	if got := DocumentID(bson.D{}); got != MissingDocumentID {
		t.Errorf("want %q, got %v", MissingDocumentID, got)
	}
	if got := DocumentID(nil); got != MissingDocumentID {
		t.Errorf("want %q for nil document, got %v", MissingDocumentID, got)
	}
}

func TestSetField(t *testing.T) {
	doc := bson.D{{Key: "a", Value: 1}, {Key: "b", Value: 2}}

	SetField(&doc, "a", 10)
	SetField(&doc, "c", 3)

	want := bson.D{{Key: "a", Value: 10}, {Key: "b", Value: 2}, {Key: "c", Value: 3}}
	if !reflect.DeepEqual(doc, want) {
		t.Errorf("want %v, got %v", want, doc)
	}
}

func TestRenameField(t *testing.T) {
	doc := bson.D{{Key: "first", Value: 1}, {Key: "old", Value: "SPG"}, {Key: "untouched", Value: "leave it"}}

	if !RenameField(&doc, "old", "new") {
		t.Fatal("want rename to report a change")
	}
	want := bson.D{{Key: "first", Value: 1}, {Key: "new", Value: "SPG"}, {Key: "untouched", Value: "leave it"}}
	if !reflect.DeepEqual(doc, want) {
		t.Errorf("want position kept, got %v", doc)
	}

	if RenameField(&doc, "missing", "other") {
		t.Error("want no change for a missing field")
	}
	if RenameField(&doc, "new", "new") {
		t.Error("want no change when renaming to itself")
	}
	if RenameField(nil, "new", "other") {
		t.Error("want no change for a nil document")
	}
}

func TestRenameField_OverwritesExisting(t *testing.T) {
	doc := bson.D{{Key: "new", Value: "stale"}, {Key: "mid", Value: 1}, {Key: "old", Value: "fresh"}}

	if !RenameField(&doc, "old", "new") {
		t.Fatal("want rename to report a change")
	}
	want := bson.D{{Key: "mid", Value: 1}, {Key: "new", Value: "fresh"}}
	if !reflect.DeepEqual(doc, want) {
		t.Errorf("want %v, got %v", want, doc)
	}
}

func TestFunc(t *testing.T) {
	meta := domain.Metadata{Version: domain.MustParseVersion("M20240101000000_Init"), Description: "init"}
	want := errors.New("boom")
	called := false

	f := NewFunc(meta, func(ctx context.Context, db *mongo.Database) error {
		called = true
		return want
	})

	if !f.Metadata().Version.Equal(meta.Version) {
		t.Error("metadata mismatch")
	}
	if err := f.Run(context.Background(), nil); !errors.Is(err, want) || !called {
		t.Errorf("want run func error, got %v", err)
	}
	if err := NewFunc(meta, nil).Run(context.Background(), nil); err != nil {
		t.Errorf("nil run func must be a no-op, got %v", err)
	}
}
