package router

import (
	"sort"

	"github.com/gin-gonic/gin"
)

// APIModule mounts its routes on a group.
type APIModule interface{ MountAPI(*gin.RouterGroup) }

// Modules implementing prioritizer are mounted in ascending order; others count as 100.
type prioritizer interface{ Priority() int }

// Mount mounts mods on g in priority order, keeping argument order for ties.
func Mount(g *gin.RouterGroup, mods ...APIModule) {
	mods = append([]APIModule(nil), mods...)
	sort.SliceStable(mods, func(i, j int) bool {
		return priorityOf(mods[i]) < priorityOf(mods[j])
	})
	for _, m := range mods {
		m.MountAPI(g)
	}
}

func priorityOf(v any) int {
	if p, ok := v.(prioritizer); ok {
		return p.Priority()
	}
	return 100
}
