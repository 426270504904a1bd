package repo

import (
	"fmt"

	"github.com/grithq/grit/pkg/object"
	"github.com/grithq/grit/pkg/storage"
)

// Tag points a lightweight tag at a commit-ish.
func (r *Repo) Tag(name, target string) error {
	ref := "refs/tags/" + name
	if _, err := r.ReadRef(ref); err == nil {
		return fmt.Errorf("tag %q already exists", name)
	} else if !storage.IsNotFound(err) {
		return err
	}

	h, err := r.ResolveRef(target)
	if err != nil {
		return fmt.Errorf("tag %s: %w", name, err)
	}
	return r.WriteRef(ref, h)
}

// TagAnnotated records a tag object carrying a message and points the
// tag ref at it.
func (r *Repo) TagAnnotated(name, target, message, tagger string) error {
	ref := "refs/tags/" + name
	if _, err := r.ReadRef(ref); err == nil {
		return fmt.Errorf("tag %q already exists", name)
	} else if !storage.IsNotFound(err) {
		return err
	}

	h, err := r.ResolveRef(target)
	if err != nil {
		return fmt.Errorf("tag %s: %w", name, err)
	}
	targetType, _, err := r.store.Read(h)
	if err != nil {
		return fmt.Errorf("tag %s: %w", name, err)
	}

	tagHash, err := r.store.WriteTag(&object.TagObj{
		TargetHash: h,
		TargetType: targetType,
		Name:       name,
		Tagger:     newIdent(tagger),
		Message:    message,
	})
	if err != nil {
		return fmt.Errorf("tag %s: %w", name, err)
	}
	return r.WriteRef(ref, tagHash)
}

// DeleteTag removes a tag ref. The tag object, if any, stays in the
// store.
func (r *Repo) DeleteTag(name string) error {
	if err := r.DeleteRef("refs/tags/" + name); err != nil {
		if storage.IsNotFound(err) {
			return fmt.Errorf("tag %q not found", name)
		}
		return err
	}
	return nil
}

// Tags lists tag names sorted lexically.
func (r *Repo) Tags() ([]string, error) {
	refs, err := r.ListRefs("refs/tags")
	if err != nil {
		return nil, err
	}
	names := SortedRefNames(refs)
	for i, name := range names {
		names[i] = name[len("refs/tags/"):]
	}
	return names, nil
}

// PeelTag follows a tag ref to the commit it ultimately names, reading
// through annotated tag objects.
func (r *Repo) PeelTag(h object.Hash) (object.Hash, error) {
	for {
		objType, _, err := r.store.Read(h)
		if err != nil {
			return "", err
		}
		if objType != object.TypeTag {
			return h, nil
		}
		tag, err := r.store.ReadTag(h)
		if err != nil {
			return "", err
		}
		h = tag.TargetHash
	}
}
