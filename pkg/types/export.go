// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// DocumentExport is the durable export artifact for one document. Its JSON
// shape is consumed downstream and must not change.
type DocumentExport struct {
	DocumentID     string                `json:"documentId" yaml:"documentId"`
	Title          string                `json:"title" yaml:"title"`
	KnowledgeUnits []KnowledgeUnitExport `json:"knowledgeUnits" yaml:"knowledgeUnits"`
}

// KnowledgeUnitExport is one knowledge unit inside a DocumentExport.
type KnowledgeUnitExport struct {
	KUID     string        `json:"kuId" yaml:"kuId"`
	SchemaID string        `json:"schemaId" yaml:"schemaId"`
	Fields   []FieldExport `json:"fields" yaml:"fields"`
}

// FieldExport is one field inside a KnowledgeUnitExport. Value is omitted
// when the field was never set.
type FieldExport struct {
	FieldID    string            `json:"fieldId" yaml:"fieldId"`
	Name       string            `json:"name" yaml:"name"`
	Value      any               `json:"value,omitempty" yaml:"value,omitempty"`
	Highlights []HighlightExport `json:"highlights" yaml:"highlights"`
}

// HighlightExport carries the evidence span without ownership ids.
type HighlightExport struct {
	Text        string `json:"text" yaml:"text"`
	StartOffset int    `json:"startOffset" yaml:"startOffset"`
	EndOffset   int    `json:"endOffset" yaml:"endOffset"`
}

// NewDocumentExport builds the export artifact for doc from the knowledge
// units that belong to it. Units of other documents are skipped.
func NewDocumentExport(doc Document, units []KnowledgeUnit) DocumentExport {
	out := DocumentExport{
		DocumentID:     doc.ID,
		Title:          doc.Title,
		KnowledgeUnits: []KnowledgeUnitExport{},
	}
	for _, ku := range units {
		if ku.DocumentID != doc.ID {
			continue
		}
		kx := KnowledgeUnitExport{
			KUID:     ku.ID,
			SchemaID: ku.SchemaID,
			Fields:   make([]FieldExport, 0, len(ku.Fields)),
		}
		for _, f := range ku.Fields {
			fx := FieldExport{
				FieldID:    f.ID,
				Name:       f.Name,
				Value:      f.Value,
				Highlights: make([]HighlightExport, 0, len(f.Highlights)),
			}
			for _, h := range f.Highlights {
				fx.Highlights = append(fx.Highlights, HighlightExport{
					Text:        h.Text,
					StartOffset: h.StartOffset,
					EndOffset:   h.EndOffset,
				})
			}
			kx.Fields = append(kx.Fields, fx)
		}
		out.KnowledgeUnits = append(out.KnowledgeUnits, kx)
	}
	return out
}
