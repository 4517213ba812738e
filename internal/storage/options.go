package storage

import "fmt"

// OpenOption qualifies a Put.
type OpenOption int

const (
	OpenRead OpenOption = iota + 1
	OpenWrite
	OpenAppend
	OpenTruncateExisting
	OpenCreate
	OpenCreateNew
	OpenDeleteOnClose
	OpenSync
)

func (o OpenOption) String() string {
	switch o {
	case OpenRead:
		return "read"
	case OpenWrite:
		return "write"
	case OpenAppend:
		return "append"
	case OpenTruncateExisting:
		return "truncate-existing"
	case OpenCreate:
		return "create"
	case OpenCreateNew:
		return "create-new"
	case OpenDeleteOnClose:
		return "delete-on-close"
	case OpenSync:
		return "sync"
	default:
		return fmt.Sprintf("OpenOption(%d)", int(o))
	}
}

// CopyOption qualifies a Move or Copy.
type CopyOption int

const (
	ReplaceExisting CopyOption = iota + 1
	AtomicMove
	CopyAttributes
)

func (o CopyOption) String() string {
	switch o {
	case ReplaceExisting:
		return "replace-existing"
	case AtomicMove:
		return "atomic-move"
	case CopyAttributes:
		return "copy-attributes"
	default:
		return fmt.Sprintf("CopyOption(%d)", int(o))
	}
}

type putMode struct {
	replace bool
}

// parsePutOptions decides between insert-only and replace semantics.
// create-new wins over truncate-existing.
func parsePutOptions(name string, opts []OpenOption) (putMode, error) {
	var mode putMode
	createNew := false

	for _, o := range opts {
		switch o {
		case OpenAppend, OpenDeleteOnClose:
			return putMode{}, fmt.Errorf("file %q: %w: %s", name, ErrUnsupportedOption, o)
		case OpenRead:
			return putMode{}, fmt.Errorf("file %q: %w: %s not allowed when writing", name, ErrUnsupportedOption, o)
		case OpenTruncateExisting:
			mode.replace = true
		case OpenCreateNew:
			createNew = true
		case OpenWrite, OpenCreate, OpenSync:
		default:
			return putMode{}, fmt.Errorf("file %q: %w: %s", name, ErrUnsupportedOption, o)
		}
	}

	if createNew {
		mode.replace = false
	}
	return mode, nil
}

type copyMode struct {
	replace bool
	atomic  bool
}

func parseCopyOptions(opts []CopyOption) (copyMode, error) {
	var mode copyMode
	for _, o := range opts {
		switch o {
		case ReplaceExisting:
			mode.replace = true
		case AtomicMove:
			mode.atomic = true
		case CopyAttributes:
		default:
			return copyMode{}, fmt.Errorf("%w: %s", ErrUnsupportedOption, o)
		}
	}
	return mode, nil
}
