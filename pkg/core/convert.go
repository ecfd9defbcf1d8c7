package core

import "github.com/sito-labs/chatmem-go/pkg/storage"

// Conversions between engine types and storage row types. The storage
// package keeps its own type set so backends never import the engine.

func toStorageMessage(m *Message) *storage.Message {
	return &storage.Message{
		ID:        m.ID,
		UserID:    m.UserID,
		SessionID: m.SessionID,
		Kind:      string(m.Kind),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func fromStorageMessage(m *storage.Message) *Message {
	return &Message{
		ID:        m.ID,
		UserID:    m.UserID,
		SessionID: m.SessionID,
		Kind:      MessageKind(m.Kind),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func toStorageEntity(e *DetectedEntity) *storage.Entity {
	return &storage.Entity{
		ID:        e.ID,
		UserID:    e.UserID,
		Name:      e.Name,
		Type:      e.Type,
		Salience:  e.Salience,
		CreatedAt: e.CreatedAt,
	}
}

func fromStorageEntity(e *storage.Entity) *DetectedEntity {
	return &DetectedEntity{
		ID:        e.ID,
		UserID:    e.UserID,
		Name:      e.Name,
		Type:      e.Type,
		Salience:  e.Salience,
		CreatedAt: e.CreatedAt,
	}
}

func toStorageProfileEntry(p *ProfileEntry) *storage.ProfileEntry {
	return &storage.ProfileEntry{
		UserID:    p.UserID,
		Category:  p.Category,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
	}
}

func fromStorageSummary(s *storage.Summary) *Summary {
	return &Summary{
		ID:        s.ID,
		UserID:    s.UserID,
		SessionID: s.SessionID,
		Text:      s.Text,
		CreatedAt: s.CreatedAt,
	}
}
