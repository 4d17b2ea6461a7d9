package extension

import (
	"context"
	"maps"

	"github.com/mushuanli/vfs/backend"
	"github.com/mushuanli/vfs/data"
)

// Composite aggregates several extensions behind the hook surface.
// For every hook it filters by applicability against the current node,
// then invokes the capability on each extension in priority order,
// folding results: beforeWrite pipes content left to right, afterWrite
// merges metadata maps with later entries winning.
type Composite struct {
	extensions []Extension
}

// NewComposite wraps an already ordered extension list.
// Use Registry.Build to get the ordering right.
func NewComposite(extensions []Extension) *Composite {
	return &Composite{extensions: extensions}
}

// Extensions returns the ordered extension list.
func (c *Composite) Extensions() []Extension {
	return c.extensions
}

// Validate runs every applicable validator; the first rejection wins
// and is wrapped with the offending extension's name.
func (c *Composite) Validate(ctx context.Context, node *data.Inode, content []byte) error {
	for _, ext := range c.extensions {
		validator, ok := ext.(Validator)
		if !ok || !ext.AppliesTo(node) {
			continue
		}

		if err := validator.Validate(ctx, node, content); err != nil {
			return data.ErrValidation(ext.Name(), err.Error())
		}
	}

	return nil
}

// BeforeWrite pipes content through every applicable transformer.
func (c *Composite) BeforeWrite(ctx context.Context, tx backend.Transaction, node *data.Inode, content []byte) ([]byte, error) {
	for _, ext := range c.extensions {
		writer, ok := ext.(BeforeWriter)
		if !ok || !ext.AppliesTo(node) {
			continue
		}

		transformed, err := writer.BeforeWrite(ctx, tx, node, content)
		if err != nil {
			return nil, err
		}
		content = transformed
	}

	return content, nil
}

// AfterWrite merges the derived metadata of every applicable extension.
func (c *Composite) AfterWrite(ctx context.Context, tx backend.Transaction, node *data.Inode, content []byte) (map[string]any, error) {
	merged := make(map[string]any)
	for _, ext := range c.extensions {
		writer, ok := ext.(AfterWriter)
		if !ok || !ext.AppliesTo(node) {
			continue
		}

		derived, err := writer.AfterWrite(ctx, tx, node, content)
		if err != nil {
			return nil, err
		}
		maps.Copy(merged, derived)
	}

	return merged, nil
}

func (c *Composite) BeforeDelete(ctx context.Context, tx backend.Transaction, node *data.Inode) error {
	for _, ext := range c.extensions {
		deleter, ok := ext.(BeforeDeleter)
		if !ok || !ext.AppliesTo(node) {
			continue
		}

		if err := deleter.BeforeDelete(ctx, tx, node); err != nil {
			return err
		}
	}

	return nil
}

func (c *Composite) AfterDelete(ctx context.Context, tx backend.Transaction, node *data.Inode) error {
	for _, ext := range c.extensions {
		deleter, ok := ext.(AfterDeleter)
		if !ok || !ext.AppliesTo(node) {
			continue
		}

		if err := deleter.AfterDelete(ctx, tx, node); err != nil {
			return err
		}
	}

	return nil
}

func (c *Composite) AfterMove(ctx context.Context, tx backend.Transaction, node *data.Inode, oldPath, newPath string) error {
	for _, ext := range c.extensions {
		mover, ok := ext.(AfterMover)
		if !ok || !ext.AppliesTo(node) {
			continue
		}

		if err := mover.AfterMove(ctx, tx, node, oldPath, newPath); err != nil {
			return err
		}
	}

	return nil
}

func (c *Composite) AfterCopy(ctx context.Context, tx backend.Transaction, source, target *data.Inode) error {
	for _, ext := range c.extensions {
		copier, ok := ext.(AfterCopier)
		if !ok || !ext.AppliesTo(source) {
			continue
		}

		if err := copier.AfterCopy(ctx, tx, source, target); err != nil {
			return err
		}
	}

	return nil
}

// Cleanup tears every extension down, collecting all errors.
func (c *Composite) Cleanup() error {
	errs := data.Errors{}
	for _, ext := range c.extensions {
		if cleaner, ok := ext.(Cleaner); ok {
			errs.Add(cleaner.Cleanup())
		}
	}

	return errs.Errors()
}
