package expression

// Context is the mapping of recognized roots an expression fragment is
// evaluated against. Field tags bind Go-illegal identifiers like "$json"
// to their struct field via an `expr:"$xxx"` tag; github.com/expr-lang/expr
// reads the tag as the environment's identifier name during compilation.
type Context struct {
	JSON      interface{}            `expr:"$json"`
	Node      map[string]interface{} `expr:"$node"`
	Workflow  map[string]interface{} `expr:"$workflow"`
	Execution map[string]interface{} `expr:"$execution"`
	Vars      map[string]interface{} `expr:"$vars"`
	ItemIndex int                    `expr:"$itemIndex"`
	Now       string                 `expr:"$now"`
	Today     string                 `expr:"$today"`

	// Helpers — status/presence predicates over $node.
	IsExecuted    func(name string) bool                          `expr:"isExecuted"`
	HasData       func(name string) bool                          `expr:"hasData"`
	GetNodeData   func(name string, def interface{}) interface{}  `expr:"getNodeData"`
	FirstExecuted func(names []interface{}) interface{}           `expr:"firstExecuted"`

	// Fixed intrinsic allow-list.
	String             func(v interface{}) string       `expr:"String"`
	Number             func(v interface{}) float64       `expr:"Number"`
	Boolean            func(v interface{}) bool          `expr:"Boolean"`
	ParseInt           func(s string, base int) interface{} `expr:"parseInt"`
	ParseFloat         func(s string) interface{}        `expr:"parseFloat"`
	IsNaN              func(v interface{}) bool          `expr:"isNaN"`
	IsFinite           func(v interface{}) bool          `expr:"isFinite"`
	EncodeURIComponent func(s string) string             `expr:"encodeURIComponent"`
	DecodeURIComponent func(s string) string             `expr:"decodeURIComponent"`
	EncodeURI          func(s string) string             `expr:"encodeURI"`
	DecodeURI          func(s string) string             `expr:"decodeURI"`

	Array    ArrayIntrinsic  `expr:"Array"`
	ObjectNS ObjectIntrinsic `expr:"Object"`
	Math     MathIntrinsic   `expr:"Math"`
	JSONNS   JSONIntrinsic   `expr:"JSON"`
	Date     DateIntrinsic   `expr:"Date"`
	DateTime DateIntrinsic   `expr:"DateTime"`
	RegExp   RegExpIntrinsic `expr:"RegExp"`
}

// NewContext builds a Context with every intrinsic and helper wired, so
// callers only need to fill in the data roots.
func NewContext() *Context {
	c := &Context{}
	bindHelpers(c)
	bindIntrinsics(c)
	return c
}
