package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"etd-catalog/models"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	wvmodels "github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"
)

// entryNamespace leitet stabile Weaviate-Objekt-IDs aus Eintrags-IDs ab.
var entryNamespace = uuid.MustParse("6f1c2b9e-3d7a-4c55-9a0e-1b8f2d4e7c31")

// ObjectID liefert die Weaviate-UUID für eine Eintrags-ID.
func ObjectID(entryID uint) string {
	return uuid.NewSHA1(entryNamespace, []byte("etd-entry/"+strconv.FormatUint(uint64(entryID), 10))).String()
}

// WeaviateIndex legt die Metadaten als Objekte einer Weaviate-Klasse ab.
type WeaviateIndex struct {
	Client    *weaviate.Client
	ClassName string
	Logger    *zap.Logger
}

// NewWeaviateClient erstellt einen Client aus einer URL wie "http://localhost:8080".
func NewWeaviateClient(rawURL string) (*weaviate.Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse weaviate url: %w", err)
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return client, nil
}

func NewWeaviateIndex(client *weaviate.Client, className string, logger *zap.Logger) *WeaviateIndex {
	return &WeaviateIndex{Client: client, ClassName: className, Logger: logger}
}

// MetaClass beschreibt das Schema der Metadaten-Klasse.
func MetaClass(className string) *wvmodels.Class {
	text := func(name, desc string) *wvmodels.Property {
		return &wvmodels.Property{Name: name, Description: desc, DataType: []string{"text"}}
	}
	textList := func(name, desc string) *wvmodels.Property {
		return &wvmodels.Property{Name: name, Description: desc, DataType: []string{"text[]"}}
	}
	date := func(name, desc string) *wvmodels.Property {
		return &wvmodels.Property{Name: name, Description: desc, DataType: []string{"date"}}
	}
	return &wvmodels.Class{
		Class:       className,
		Description: "Searchable metadata of catalogued theses and dissertations",
		Vectorizer:  "none",
		Properties: []*wvmodels.Property{
			{Name: "entry_id", Description: "Key of the relational entry", DataType: []string{"int"}},
			text("title", "Title"),
			text("description_abstract", "Abstract"),
			text("type", "Document type"),
			textList("subject", "Subjects"),
			text("contributor_author", "Author"),
			textList("contributor_committeechair", "Committee chairs"),
			textList("contributor_committeecochair", "Committee co-chairs"),
			textList("contributor_committeemember", "Committee members"),
			text("contributor_department", "Department"),
			date("date_accessioned", "Accession date"),
			date("date_available", "Availability date"),
			date("date_issued", "Issuance date"),
			text("degree_grantor", "Degree grantor"),
			text("degree_level", "Degree level"),
			text("degree_name", "Degree name"),
			text("identifier_sourceurl", "Source URL"),
			text("identifier_uri", "Handle URI"),
			text("publisher", "Publisher"),
			text("rights", "Rights statement"),
		},
	}
}

// EnsureSchema legt die Klasse an, falls sie fehlt.
func (w *WeaviateIndex) EnsureSchema(ctx context.Context) error {
	exists, err := w.Client.Schema().ClassExistenceChecker().WithClassName(w.ClassName).Do(ctx)
	if err != nil {
		return fmt.Errorf("check weaviate class: %w", err)
	}
	if exists {
		return nil
	}
	if err := w.Client.Schema().ClassCreator().WithClass(MetaClass(w.ClassName)).Do(ctx); err != nil {
		return fmt.Errorf("create weaviate class: %w", err)
	}
	w.Logger.Info("Weaviate-Klasse angelegt", zap.String("class", w.ClassName))
	return nil
}

func (w *WeaviateIndex) Index(ctx context.Context, meta *models.EtdEntryMeta) error {
	if meta.ID == 0 {
		return errors.New("meta without entry id")
	}
	id := ObjectID(meta.ID)
	props := toProperties(meta)

	// PUT ersetzt ein vorhandenes Objekt; fehlt es, antwortet Weaviate mit 404 und wir legen es an.
	err := w.Client.Data().Updater().
		WithClassName(w.ClassName).
		WithID(id).
		WithProperties(props).
		Do(ctx)
	if err == nil {
		return nil
	}
	if !isNotFoundError(err) {
		return fmt.Errorf("replace weaviate object: %w", err)
	}
	if _, err := w.Client.Data().Creator().
		WithClassName(w.ClassName).
		WithID(id).
		WithProperties(props).
		Do(ctx); err != nil {
		return fmt.Errorf("create weaviate object: %w", err)
	}
	return nil
}

func (w *WeaviateIndex) DeleteByID(ctx context.Context, id uint) error {
	err := w.Client.Data().Deleter().
		WithClassName(w.ClassName).
		WithID(ObjectID(id)).
		Do(ctx)
	if err != nil && !isNotFoundError(err) {
		return err
	}
	return nil
}

func (w *WeaviateIndex) FindByID(ctx context.Context, id uint) (*models.EtdEntryMeta, error) {
	objs, err := w.Client.Data().ObjectsGetter().
		WithClassName(w.ClassName).
		WithID(ObjectID(id)).
		Do(ctx)
	if err != nil {
		if isNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(objs) == 0 || objs[0] == nil {
		return nil, ErrNotFound
	}
	props, ok := objs[0].Properties.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected weaviate properties type %T", objs[0].Properties)
	}
	return metaFromProperties(id, props), nil
}

func (w *WeaviateIndex) FindAllByIDs(ctx context.Context, ids []uint) ([]models.EtdEntryMeta, error) {
	out := make([]models.EtdEntryMeta, 0, len(ids))
	for _, id := range ids {
		meta, err := w.FindByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			w.Logger.Warn("Metadaten fehlen im Index", zap.Uint("entry_id", id))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *meta)
	}
	return out, nil
}

// isNotFoundError prüft, ob Weaviate ein fehlendes Objekt gemeldet hat. Transportfehler
// tragen StatusCode -1 und zählen nie als fehlend.
func isNotFoundError(err error) bool {
	var clientErr *fault.WeaviateClientError
	return errors.As(err, &clientErr) && clientErr.StatusCode == http.StatusNotFound
}

func toProperties(m *models.EtdEntryMeta) map[string]interface{} {
	props := map[string]interface{}{
		"entry_id":                     m.ID,
		"title":                        m.Title,
		"description_abstract":         m.DescriptionAbstract,
		"type":                         m.Type,
		"subject":                      nonNil(m.Subject),
		"contributor_author":           m.ContributorAuthor,
		"contributor_committeechair":   nonNil(m.ContributorCommitteeChair),
		"contributor_committeecochair": nonNil(m.ContributorCommitteeCoChair),
		"contributor_committeemember":  nonNil(m.ContributorCommitteeMember),
		"contributor_department":       m.ContributorDepartment,
		"degree_grantor":               m.DegreeGrantor,
		"degree_level":                 m.DegreeLevel,
		"degree_name":                  m.DegreeName,
		"identifier_sourceurl":         m.IdentifierSourceURL,
		"identifier_uri":               m.IdentifierURI,
		"publisher":                    m.Publisher,
		"rights":                       m.Rights,
	}
	for name, t := range map[string]*time.Time{
		"date_accessioned": m.DateAccessioned,
		"date_available":   m.DateAvailable,
		"date_issued":      m.DateIssued,
	} {
		if t != nil {
			props[name] = t.UTC().Format(time.RFC3339Nano)
		}
	}
	return props
}

func metaFromProperties(id uint, props map[string]interface{}) *models.EtdEntryMeta {
	str := func(name string) string {
		s, _ := props[name].(string)
		return s
	}
	list := func(name string) models.StringList {
		out := models.StringList{}
		switch v := props[name].(type) {
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					out = append(out, s)
				}
			}
		case []string:
			out = append(out, v...)
		}
		return out
	}
	date := func(name string) *time.Time {
		s, ok := props[name].(string)
		if !ok || s == "" {
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil
		}
		return &t
	}

	return &models.EtdEntryMeta{
		ID:                          id,
		Title:                       str("title"),
		DescriptionAbstract:         str("description_abstract"),
		Type:                        str("type"),
		Subject:                     list("subject"),
		ContributorAuthor:           str("contributor_author"),
		ContributorCommitteeChair:   list("contributor_committeechair"),
		ContributorCommitteeCoChair: list("contributor_committeecochair"),
		ContributorCommitteeMember:  list("contributor_committeemember"),
		ContributorDepartment:       str("contributor_department"),
		DateAccessioned:             date("date_accessioned"),
		DateAvailable:               date("date_available"),
		DateIssued:                  date("date_issued"),
		DegreeGrantor:               str("degree_grantor"),
		DegreeLevel:                 str("degree_level"),
		DegreeName:                  str("degree_name"),
		IdentifierSourceURL:         str("identifier_sourceurl"),
		IdentifierURI:               str("identifier_uri"),
		Publisher:                   str("publisher"),
		Rights:                      str("rights"),
	}
}

func nonNil(l models.StringList) []string {
	if l == nil {
		return []string{}
	}
	return l
}
