// ABOUTME: Structural role inference over the character graph
// ABOUTME: Centrality, knowledge flow, and profile traits scored by rule
package roles

import (
	"sort"
	"strings"

	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/storage"
)

// Service infers narrative roles from graph structure
type Service struct {
	store *storage.Storage
}

// NewService creates a roles service
func NewService(store *storage.Storage) *Service {
	return &Service{store: store}
}

// Role is one inferred role with its evidence-backed score
type Role struct {
	Role   string  `json:"role"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Inference is the full role reading for one character
type Inference struct {
	CharacterID string  `json:"character"`
	Name        string  `json:"name"`
	Primary     *Role   `json:"primary,omitempty"`
	Secondary   []Role  `json:"secondary,omitempty"`
	Confidence  float64 `json:"confidence"`
	Degree      float64 `json:"degree_centrality"`
	Betweenness float64 `json:"betweenness_centrality"`
}

// Infer scores one character against every role rule
func (s *Service) Infer(characterID string) (*Inference, error) {
	g, err := s.buildGraph()
	if err != nil {
		return nil, err
	}
	c, err := s.store.Characters.GetByID(characterID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, narraerr.NotFound("character", characterID)
	}
	return s.infer(c, g)
}

// InferAll scores every character
func (s *Service) InferAll() ([]Inference, error) {
	g, err := s.buildGraph()
	if err != nil {
		return nil, err
	}
	characters, err := s.store.Characters.List()
	if err != nil {
		return nil, err
	}
	out := make([]Inference, 0, len(characters))
	for i := range characters {
		inf, err := s.infer(&characters[i], g)
		if err != nil {
			return nil, err
		}
		out = append(out, *inf)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].CharacterID < out[j].CharacterID
	})
	return out, nil
}

func (s *Service) infer(c *models.Character, g *graph) (*Inference, error) {
	dc := g.degree[c.ID]
	bc := g.betweenness[c.ID]

	var roles []Role
	add := func(role string, score float64, reason string) {
		if score > 1 {
			score = 1
		}
		roles = append(roles, Role{Role: role, Score: score, Reason: reason})
	}

	if dc > 0.5 {
		add("social_hub", 0.6+(dc-0.5)*0.8, "connected to most of the cast")
	}
	if bc > 0.3 && dc < 0.6 {
		add("bridge", 0.5+bc*0.5, "links otherwise separate circles")
	}
	if dc == 0 {
		add("outsider", 0.9, "no relationships or perceptions at all")
	} else if dc < 0.2 {
		add("peripheral", 0.4, "few connections")
	}

	counts, err := s.knowledgeCounts(c, g)
	if err != nil {
		return nil, err
	}
	if counts.knownAbout > 0 {
		add("person_of_interest", 0.4+minF(float64(counts.knownAbout)/10, 0.5),
			"others hold knowledge about them")
	}
	if counts.falseBeliefsAbout > 0 {
		add("enigma", 0.5+minF(float64(counts.falseBeliefsAbout)/5, 0.4),
			"others believe false things about them")
	}
	if counts.holdsFalseBeliefs > 0 {
		add("deceived", 0.4+minF(float64(counts.holdsFalseBeliefs)/5, 0.4),
			"holds beliefs that are wrong")
	}
	if counts.knows > 0 {
		add("information_broker", 0.3+minF(float64(counts.knows)/20, 0.4),
			"holds a large body of knowledge")
	}
	if n := g.relOut[c.ID]["mentor"]; n > 0 {
		add("mentor", 0.5+minF(float64(n)/3, 0.4), "mentors other characters")
	}
	if n := g.relAny[c.ID]["rival"]; n > 0 {
		add("antagonist", 0.4+minF(float64(n)/5, 0.4), "in active rivalries")
	}
	if n := g.relAny[c.ID]["ally"]; n > 0 {
		add("connector", 0.3+minF(float64(n)/6, 0.4), "allied across the cast")
	}
	if n := len(c.Profile[models.TraitSecret]); n > 0 {
		add("keeper_of_secrets", 0.4+minF(float64(n)/3, 0.4), "carries secrets")
	}
	if n := len(c.Profile[models.TraitContradiction]); n > 0 {
		add("complex_character", 0.3+minF(float64(n)/3, 0.4), "built on contradictions")
	}
	if n := len(c.Profile[models.TraitWound]); n > 0 {
		add("tragic_figure", 0.3+minF(float64(n)/3, 0.3), "shaped by wounds")
	}

	sort.Slice(roles, func(i, j int) bool {
		if roles[i].Score != roles[j].Score {
			return roles[i].Score > roles[j].Score
		}
		return roles[i].Role < roles[j].Role
	})

	inf := &Inference{
		CharacterID: c.ID,
		Name:        c.Name,
		Degree:      dc,
		Betweenness: bc,
	}
	if len(roles) > 0 {
		inf.Primary = &roles[0]
		inf.Confidence = clamp01(roles[0].Score)
		for _, r := range roles[1:] {
			if r.Score < 0.3 || len(inf.Secondary) == 3 {
				break
			}
			inf.Secondary = append(inf.Secondary, r)
		}
	}
	return inf, nil
}

type knowledgeTally struct {
	knows             int
	holdsFalseBeliefs int
	knownAbout        int
	falseBeliefsAbout int
}

// knowledgeCounts tallies what a character knows and what others hold
// about them. "About them" means the proposition mentions their name.
func (s *Service) knowledgeCounts(c *models.Character, g *graph) (*knowledgeTally, error) {
	edges, err := s.store.Knowledge.AllLatestEdges()
	if err != nil {
		return nil, err
	}

	t := &knowledgeTally{}
	name := strings.ToLower(c.Name)
	for _, e := range edges {
		if e.Certainty == models.CertaintyUnknown {
			continue
		}
		if e.CharacterID == c.ID {
			if e.Certainty == models.CertaintyKnows {
				t.knows++
			}
			if e.Certainty == models.CertaintyBelievesWrongly {
				t.holdsFalseBeliefs++
			}
			continue
		}
		fact := strings.ToLower(g.facts[e.KnowledgeID])
		if name != "" && strings.Contains(fact, name) {
			t.knownAbout++
			if e.Certainty == models.CertaintyBelievesWrongly {
				t.falseBeliefsAbout++
			}
		}
	}
	return t, nil
}

// graph is the undirected character graph with precomputed centralities
type graph struct {
	degree      map[string]float64
	betweenness map[string]float64
	relOut      map[string]map[string]int
	relAny      map[string]map[string]int
	facts       map[string]string
}

func (s *Service) buildGraph() (*graph, error) {
	characters, err := s.store.Characters.List()
	if err != nil {
		return nil, err
	}
	relationships, err := s.store.Perceptions.ListRelationships()
	if err != nil {
		return nil, err
	}
	perceptions, err := s.store.Perceptions.ListPerceptions()
	if err != nil {
		return nil, err
	}

	adj := map[string]map[string]bool{}
	for _, c := range characters {
		adj[c.ID] = map[string]bool{}
	}
	connect := func(a, b string) {
		if a == b {
			return
		}
		if _, ok := adj[a]; !ok {
			return
		}
		if _, ok := adj[b]; !ok {
			return
		}
		adj[a][b] = true
		adj[b][a] = true
	}

	relOut := map[string]map[string]int{}
	relAny := map[string]map[string]int{}
	bump := func(m map[string]map[string]int, id, kind string) {
		if m[id] == nil {
			m[id] = map[string]int{}
		}
		m[id][kind]++
	}
	for _, r := range relationships {
		connect(r.FromID, r.ToID)
		for _, kind := range []string{"mentor", "rival", "ally"} {
			if strings.Contains(strings.ToLower(r.RelType), kind) {
				bump(relOut, r.FromID, kind)
				bump(relAny, r.FromID, kind)
				bump(relAny, r.ToID, kind)
			}
		}
	}
	for _, p := range perceptions {
		connect(p.ObserverID, p.TargetID)
	}

	n := len(characters)
	degree := make(map[string]float64, n)
	for id, neighbors := range adj {
		if n > 1 {
			degree[id] = float64(len(neighbors)) / float64(n-1)
		}
	}

	facts := map[string]string{}
	for _, c := range characters {
		items, err := s.store.Knowledge.ListByCharacter(c.ID)
		if err != nil {
			return nil, err
		}
		for _, k := range items {
			facts[k.ID] = k.Fact
		}
	}

	return &graph{
		degree:      degree,
		betweenness: betweennessCentrality(adj, n),
		relOut:      relOut,
		relAny:      relAny,
		facts:       facts,
	}, nil
}

// betweennessCentrality runs Brandes' algorithm on the unweighted graph
// and normalizes by the number of possible pairs.
func betweennessCentrality(adj map[string]map[string]bool, n int) map[string]float64 {
	bc := make(map[string]float64, n)
	if n < 3 {
		for id := range adj {
			bc[id] = 0
		}
		return bc
	}

	nodes := make([]string, 0, n)
	for id := range adj {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)

	for _, src := range nodes {
		stack := []string{}
		preds := map[string][]string{}
		sigma := map[string]float64{src: 1}
		dist := map[string]int{src: 0}
		queue := []string{src}

		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for w := range adj[v] {
				if _, seen := dist[w]; !seen {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], v)
				}
			}
		}

		delta := map[string]float64{}
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range preds[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != src {
				bc[w] += delta[w]
			}
		}
	}

	// Undirected graph counts each pair twice
	norm := float64((n - 1) * (n - 2))
	for id := range adj {
		bc[id] /= norm
	}
	return bc
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
