package widget

import (
	"strings"
	"sync"

	"chat-widget/internal/domain"
)

type Kind string

const (
	KindMessage Kind = "message"
	KindLoading Kind = "loading"
	KindError   Kind = "error"
)

// Node is one rendered entry on the message surface. HTML is always the
// RenderText form of Text.
type Node struct {
	ID   int    `json:"id"`
	Role string `json:"role"`
	Kind Kind   `json:"kind"`
	Text string `json:"-"`
	HTML string `json:"html"`
}

func newNode(role string, kind Kind, text string) Node {
	return Node{
		Role: role,
		Kind: kind,
		Text: text,
		HTML: RenderText(text),
	}
}

// Class returns the CSS class list the page uses to style the node.
func (n Node) Class() string {
	parts := []string{"message", n.Role}
	if n.Kind == KindLoading || n.Kind == KindError {
		parts = append(parts, string(n.Kind))
	}
	return strings.Join(parts, " ")
}

// Surface is the display the session renders into. Append must make the new
// node the visible, newest entry and return an id usable with Remove.
type Surface interface {
	Append(n Node) int
	Remove(id int)
	ClearInput()
}

// Recorder is an in-memory Surface. It keeps live nodes in render order.
type Recorder struct {
	mu           sync.Mutex
	nextID       int
	nodes        []Node
	removed      []Node
	inputCleared bool
	scrolledTo   int
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Append(n Node) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	n.ID = r.nextID
	r.nodes = append(r.nodes, n)
	r.scrolledTo = n.ID
	return n.ID
}

func (r *Recorder) Remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.nodes {
		if n.ID == id {
			r.removed = append(r.removed, n)
			r.nodes = append(r.nodes[:i], r.nodes[i+1:]...)
			return
		}
	}
}

func (r *Recorder) ClearInput() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputCleared = true
}

// Nodes returns a copy of the nodes still on the surface.
func (r *Recorder) Nodes() []Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Node(nil), r.nodes...)
}

// Removed returns the nodes that were rendered and later taken down.
func (r *Recorder) Removed() []Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Node(nil), r.removed...)
}

func (r *Recorder) InputCleared() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inputCleared
}

// ScrolledTo is the id of the newest rendered node.
func (r *Recorder) ScrolledTo() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scrolledTo
}

// Greeting builds the assistant node shown when a page opens.
func Greeting(text string) Node {
	return newNode(domain.RoleAssistant, KindMessage, text)
}
