package object

// Hash is a 40-character hex-encoded SHA-1 digest naming one object.
type Hash string

// ZeroHash is the all-zero hash used on the wire for ref creation and
// deletion.
const ZeroHash Hash = "0000000000000000000000000000000000000000"

// HashHexLen is the length of a hex-encoded Hash.
const HashHexLen = 40

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
	TypeTag    ObjectType = "tag"
)

const (
	// Tree mode strings, canonical Git spellings.
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
	TreeModeSymlink    = "120000"
)

// TreeEntry is one entry in a tree object.
type TreeEntry struct {
	Mode string
	Name string
	Hash Hash
}

// IsDir reports whether the entry names a subtree.
func (e TreeEntry) IsDir() bool {
	return e.Mode == TreeModeDir
}

// TreeObj holds the entries of a tree, sorted by Name.
type TreeObj struct {
	Entries []TreeEntry
}

// Ident is an author or committer identity: the name, e.g.
// "Ada Lovelace <ada@example.com>", with its timestamp and zone.
type Ident struct {
	Name string // full "Name <email>" form
	When int64  // unix seconds
	TZ   string // e.g. "+0000"
}

// CommitObj represents a commit pointing at a tree with metadata.
type CommitObj struct {
	TreeHash  Hash
	Parents   []Hash
	Author    Ident
	Committer Ident
	Message   string
}

// TagObj is an annotated tag referencing another object.
type TagObj struct {
	TargetHash Hash
	TargetType ObjectType
	Name       string
	Tagger     Ident
	Message    string
}
