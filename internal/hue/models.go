package hue

import "github.com/amimof/huego"

// Group represents a Hue group (v1 API)
type Group struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Type   string           `json:"type"`
	Lights []string         `json:"lights"`
	State  huego.GroupState `json:"state"`
}

// Command is the group action body sent to the bridge
type Command struct {
	On bool `json:"on"`
}

// FindGroup returns the first group whose name equals name exactly.
// Order is the order the bridge listed the groups in.
func FindGroup(groups []Group, name string) (Group, bool) {
	for _, g := range groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}
