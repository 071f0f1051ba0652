package storage

import "notebook-backend/internal/model"

func cloneNotebook(n *model.Notebook) *model.Notebook {
	c := *n
	c.Sources = append([]model.Source(nil), n.Sources...)
	c.Messages = append([]model.Message(nil), n.Messages...)
	return &c
}

func clonePresentation(p *model.Presentation) *model.Presentation {
	c := *p
	c.Slides = make([]model.Slide, len(p.Slides))
	for i, s := range p.Slides {
		s.Points = append([]string(nil), s.Points...)
		c.Slides[i] = s
	}
	return &c
}

func messagePointers(messages []model.Message) []*model.Message {
	out := make([]*model.Message, len(messages))
	for i := range messages {
		msg := messages[i]
		out[i] = &msg
	}
	return out
}

func validNotebook(n *model.Notebook) error {
	if n == nil || n.ID == "" {
		return ErrInvalidData
	}
	return nil
}
