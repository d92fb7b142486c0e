package eval

import (
	"echo/objstore"
	"echo/types"
)

const playerRegistryProp = "player_registry"

// playerRegistry reads #0.player_registry, creating an empty one in memory
// (not yet persisted) if it has never been written.
func (e *Evaluator) playerRegistry() (*objstore.Object, map[string]types.PropertyValue, *types.EvalError) {
	system, err := e.Objects.MustGet(types.SYSTEM)
	if err != nil {
		return nil, nil, err.(*types.EvalError)
	}
	pv, ok := system.Properties[playerRegistryProp]
	if !ok || pv.Kind != types.PropMap {
		return system, map[string]types.PropertyValue{}, nil
	}
	return system, pv.Map, nil
}

// CreatePlayer allocates a new player object and registers it under username
// in #0.player_registry (spec.md §3 invariant 4: never as a named property
// of #0 itself). Duplicate usernames are rejected.
func (e *Evaluator) CreatePlayer(username string) (types.ObjectID, error) {
	system, registry, err := e.playerRegistry()
	if err != nil {
		return types.ObjectID{}, err
	}
	if _, taken := registry[username]; taken {
		return types.ObjectID{}, types.ErrInvalidOperation("username %q already taken", username)
	}

	id := types.NewObjectID()
	player := objstore.NewObject(id, username, id)
	player.Parent = &types.ROOT
	if serr := e.Objects.Store(player); serr != nil {
		return types.ObjectID{}, serr
	}

	next := make(map[string]types.PropertyValue, len(registry)+1)
	for k, v := range registry {
		next[k] = v
	}
	next[username] = types.ObjectProp(id)
	system.SetProperty(playerRegistryProp, types.MapProp(next))
	if serr := e.Objects.Store(system); serr != nil {
		return types.ObjectID{}, serr
	}
	e.envFor(id)
	return id, nil
}

// SwitchPlayer makes id the current player, creating its root environment on
// first switch.
func (e *Evaluator) SwitchPlayer(id types.ObjectID) error {
	if _, err := e.Objects.MustGet(id); err != nil {
		return err
	}
	e.envFor(id)
	e.currentPlayer = &id
	return nil
}

// SwitchPlayerByUsername looks up name in the registry and switches to it.
func (e *Evaluator) SwitchPlayerByUsername(name string) error {
	id, ok, err := e.FindPlayerByUsername(name)
	if err != nil {
		return err
	}
	if !ok {
		return types.ErrInvalidOperation("no such player %q", name)
	}
	return e.SwitchPlayer(id)
}

// FindPlayerByUsername reports the ObjectId registered under name, if any.
func (e *Evaluator) FindPlayerByUsername(name string) (types.ObjectID, bool, error) {
	_, registry, err := e.playerRegistry()
	if err != nil {
		return types.ObjectID{}, false, err
	}
	pv, ok := registry[name]
	if !ok || pv.Kind != types.PropObject {
		return types.ObjectID{}, false, nil
	}
	return pv.Object, true, nil
}

// ChangePlayerUsername transactionally renames a registry entry, rejecting
// the change if newName is already taken by a different player.
func (e *Evaluator) ChangePlayerUsername(id types.ObjectID, newName string) error {
	system, registry, err := e.playerRegistry()
	if err != nil {
		return err
	}
	var oldName string
	for name, pv := range registry {
		if pv.Kind == types.PropObject && pv.Object == id {
			oldName = name
			break
		}
	}
	if oldName == "" {
		return types.ErrObjectNotFound(id)
	}
	if oldName == newName {
		return nil
	}
	if existing, taken := registry[newName]; taken && !(existing.Kind == types.PropObject && existing.Object == id) {
		return types.ErrInvalidOperation("username %q already taken", newName)
	}

	next := make(map[string]types.PropertyValue, len(registry))
	for k, v := range registry {
		if k == oldName {
			continue
		}
		next[k] = v
	}
	next[newName] = types.ObjectProp(id)
	system.SetProperty(playerRegistryProp, types.MapProp(next))
	if serr := e.Objects.Store(system); serr != nil {
		return serr
	}

	player, perr := e.Objects.MustGet(id)
	if perr != nil {
		return perr
	}
	player.Name = newName
	return e.Objects.Store(player)
}

// ListPlayers returns every registered (username, ObjectId) pair.
func (e *Evaluator) ListPlayers() ([]struct {
	Name string
	ID   types.ObjectID
}, error) {
	_, registry, err := e.playerRegistry()
	if err != nil {
		return nil, err
	}
	out := make([]struct {
		Name string
		ID   types.ObjectID
	}, 0, len(registry))
	for name, pv := range registry {
		if pv.Kind != types.PropObject {
			continue
		}
		out = append(out, struct {
			Name string
			ID   types.ObjectID
		}{Name: name, ID: pv.Object})
	}
	return out, nil
}
