package bridge

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/cogchat/pkg/conversation"
	"github.com/go-go-golems/cogchat/pkg/graph"
	"github.com/go-go-golems/cogchat/pkg/providers"
)

// conceptPattern matches capitalized words; the bridge treats them as
// candidate concepts. Deliberately naive, the graph store dedupes whatever
// noise slips through.
var conceptPattern = regexp.MustCompile(`\b[A-Z][a-z]+\b`)

const (
	predRelatesTo       = "relates-to"
	predDerivedFrom     = "derived-from"
	predEmergentPattern = "emergent-pattern"
)

// ConceptBridge connects free-form model output to the graph store: it
// extracts concepts from text, materializes them as nodes, relates
// co-occurring concepts, and spreads activation along existing links.
type ConceptBridge struct {
	store   graph.Store
	adapter providers.Adapter
}

func New(store graph.Store, adapter providers.Adapter) *ConceptBridge {
	return &ConceptBridge{store: store, adapter: adapter}
}

// ExtractConcepts pulls capitalized words longer than two characters out of
// the text, deduplicates them, and materializes each as a concept node named
// "concept:<word>". Returns the nodes in first-occurrence order.
func (b *ConceptBridge) ExtractConcepts(text string) ([]*graph.Node, error) {
	seen := map[string]struct{}{}
	var nodes []*graph.Node
	for _, word := range conceptPattern.FindAllString(text, -1) {
		if len(word) <= 2 {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}

		node, err := b.store.AddNode(graph.NodeTypeConcept, "concept:"+word)
		if err != nil {
			return nodes, errors.Wrapf(err, "failed to materialize concept %s", word)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// LinkConcepts relates every pair of the given concepts under the relation
// predicate. Co-occurrence in the same text is the only signal; the links
// are unweighted.
func (b *ConceptBridge) LinkConcepts(concepts []*graph.Node, relation string) error {
	if relation == "" {
		relation = predRelatesTo
	}
	pred, err := b.store.AddNode(graph.NodeTypePredicate, relation)
	if err != nil {
		return errors.Wrap(err, "failed to materialize relation predicate")
	}

	for i := 0; i < len(concepts); i++ {
		for j := i + 1; j < len(concepts); j++ {
			if _, err := b.store.AddLink(graph.LinkTypeEvaluation, pred, concepts[i], concepts[j]); err != nil {
				return errors.Wrapf(err, "failed to relate %s and %s", concepts[i].Name, concepts[j].Name)
			}
		}
	}
	return nil
}

// Propagate spreads activation from the seed concept along evaluation links,
// up to depth hops away. Each newly reached neighbor gains an
// "emergent-pattern" evaluation fact relating the concept it was reached
// from to the neighbor, so the derivation pairing survives in the store. A
// visited set guards against cycles; depth 0 visits nothing, and a seed with
// no neighbors leaves the store untouched. Returns the names of the
// concepts reached, sorted.
func (b *ConceptBridge) Propagate(seed *graph.Node, depth int) ([]string, error) {
	if seed == nil || depth <= 0 {
		return nil, nil
	}

	// The predicate node is materialized lazily so a walk that reaches
	// nothing performs no writes.
	var pred *graph.Node

	visited := map[string]struct{}{seed.Key(): {}}
	frontier := []*graph.Node{seed}
	var reached []string

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []*graph.Node
		for _, node := range frontier {
			links, err := b.store.IncomingLinks(node)
			if err != nil {
				return reached, errors.Wrapf(err, "failed to walk links of %s", node.Name)
			}
			for _, l := range links {
				if l.Type != graph.LinkTypeEvaluation {
					continue
				}
				for _, target := range l.Targets {
					if target.Type != graph.NodeTypeConcept {
						continue
					}
					if _, ok := visited[target.Key()]; ok {
						continue
					}
					visited[target.Key()] = struct{}{}

					if pred == nil {
						pred, err = b.store.AddNode(graph.NodeTypePredicate, predEmergentPattern)
						if err != nil {
							return reached, errors.Wrap(err, "failed to materialize pattern predicate")
						}
					}
					if _, err := b.store.AddLink(graph.LinkTypeEvaluation, pred, node, target); err != nil {
						log.Warn().Err(err).Str("concept", target.Name).Msg("failed to record emergent pattern")
					}
					reached = append(reached, target.Name)
					next = append(next, target)
				}
			}
		}
		frontier = next
	}

	sort.Strings(reached)
	return reached, nil
}

// Bridge runs one full grounding round-trip: extract concepts from the
// input, ask the model about their relationships, materialize the concepts
// found in the reply, and link each of them back to the input concepts under
// "derived-from".
func (b *ConceptBridge) Bridge(ctx context.Context, input string) (string, error) {
	inputConcepts, err := b.ExtractConcepts(input)
	if err != nil {
		return "", err
	}
	if err := b.LinkConcepts(inputConcepts, predRelatesTo); err != nil {
		return "", err
	}

	names := make([]string, 0, len(inputConcepts))
	for _, n := range inputConcepts {
		names = append(names, strings.TrimPrefix(n.Name, "concept:"))
	}

	query := input
	if len(names) > 0 {
		query = "Explain how these concepts relate to each other: " + strings.Join(names, ", ")
	}

	reply, err := b.adapter.Complete(ctx, []conversation.Message{
		conversation.NewMessage(conversation.RoleUser, query),
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to query model for concept relationships")
	}

	replyConcepts, err := b.ExtractConcepts(reply)
	if err != nil {
		return reply, err
	}

	pred, err := b.store.AddNode(graph.NodeTypePredicate, predDerivedFrom)
	if err != nil {
		return reply, errors.Wrap(err, "failed to materialize derivation predicate")
	}
	for _, derived := range replyConcepts {
		for _, source := range inputConcepts {
			if derived.Key() == source.Key() {
				continue
			}
			if _, err := b.store.AddLink(graph.LinkTypeEvaluation, pred, derived, source); err != nil {
				log.Warn().Err(err).Str("concept", derived.Name).Msg("failed to link derived concept")
			}
		}
	}

	log.Debug().Int("input_concepts", len(inputConcepts)).Int("derived_concepts", len(replyConcepts)).
		Msg("bridged text through the graph store")
	return reply, nil
}
