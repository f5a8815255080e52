package httpapi

import (
	"time"

	"github.com/mkuzmins/homeboard/internal/server/models"
)

type noteDTO struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	OwnerName string     `json:"owner_name"`
	Content   string     `json:"content"`
	Private   bool       `json:"private"`
	Pinned    bool       `json:"pinned"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	TrashedAt *time.Time `json:"trashed_at,omitempty"`
}

func toNoteDTO(n *models.Note) noteDTO {
	return noteDTO{
		ID:        n.ID,
		OwnerID:   n.OwnerID,
		OwnerName: n.OwnerName,
		Content:   n.Content,
		Private:   n.Private,
		Pinned:    n.Pinned,
		Version:   n.Version,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		TrashedAt: n.TrashedAt,
	}
}

func toNoteDTOs(notes []*models.Note) []noteDTO {
	result := make([]noteDTO, 0, len(notes))
	for _, n := range notes {
		result = append(result, toNoteDTO(n))
	}
	return result
}

type tagDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

func toTagDTO(t *models.Tag) tagDTO {
	return tagDTO{ID: t.ID, Name: t.Name, Color: t.Color, CreatedAt: t.CreatedAt}
}

type noteTagDTO struct {
	NoteID string `json:"note_id"`
	TagID  string `json:"tag_id"`
}

type userDTO struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

func toUserDTO(u *models.User) userDTO {
	return userDTO{ID: u.ID, Login: u.Login, DisplayName: u.DisplayName}
}
