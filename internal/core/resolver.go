package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mikey-austin/zonectl/internal/ports"
	"github.com/mikey-austin/zonectl/pkg/hass"
)

// Resolver resolves player selectors to device ids.
type Resolver struct {
	Config    Config
	Selection ports.SelectionStore
}

// DeviceIDs returns the configured device ids, or every known device when
// none are configured.
func (r Resolver) DeviceIDs(states States) []string {
	if len(r.Config.Entities) > 0 {
		return r.Config.Entities
	}
	return states.IDs()
}

// ResolvePlayer resolves a selector against the current states. An empty
// selector falls back to the last selected device, then the configured
// default, then the only device.
func (r Resolver) ResolvePlayer(selector string, states States) (string, error) {
	candidates := r.DeviceIDs(states)
	selector = strings.TrimSpace(selector)
	if selector != "" {
		return resolveSelector(selector, candidates, states, r.Config.Aliases)
	}

	if r.Selection != nil {
		id, ok, err := r.Selection.Selected()
		if err != nil {
			return "", WrapError(ExitRuntime, "read selection", err)
		}
		if ok && contains(candidates, id) {
			return id, nil
		}
	}
	if def := r.Config.Defaults.Player; def != "" {
		return resolveSelector(def, candidates, states, r.Config.Aliases)
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	return "", &CLIError{Code: ExitUsage, Msg: "player selector required"}
}

func resolveSelector(selector string, candidates []string, states States, aliases map[string]string) (string, error) {
	if alias, ok := aliases[selector]; ok {
		selector = alias
	}

	if contains(candidates, selector) {
		return selector, nil
	}
	if !strings.Contains(selector, ".") {
		if id := hass.DomainMediaPlayer + "." + selector; contains(candidates, id) {
			return id, nil
		}
	}

	matches := make([]string, 0)
	for _, id := range candidates {
		state, ok := states[id]
		if ok && strings.EqualFold(state.DisplayName, selector) {
			matches = append(matches, id)
			continue
		}
		if strings.EqualFold(id, selector) {
			matches = append(matches, id)
		}
	}

	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) == 0 {
		return "", &CLIError{Code: ExitNotFound, Msg: fmt.Sprintf("no player matches %q", selector)}
	}
	return "", &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("ambiguous selector %q: %s", selector, suggestionList(matches, states))}
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func suggestionList(matches []string, states States) string {
	names := make([]string, 0, len(matches))
	for _, id := range matches {
		names = append(names, fmt.Sprintf("%s (%s)", states[id].DisplayName, id))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
