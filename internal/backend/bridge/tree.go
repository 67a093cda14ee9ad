package bridge

import (
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/process"
)

// killTree kills pid and every descendant, children first. Headless browser
// sidecars fork renderer processes that outlive their parent otherwise.
func killTree(pid int) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return
	}
	killDescendants(p)
	if err := p.Kill(); err != nil {
		log.Debug().Err(err).Int("pid", pid).Msg("kill sidecar")
	}
}

func killDescendants(p *process.Process) {
	children, err := p.Children()
	if err != nil {
		return
	}
	for _, child := range children {
		killDescendants(child)
		if err := child.Kill(); err != nil {
			log.Debug().Err(err).Int32("pid", child.Pid).Msg("kill sidecar child")
		}
	}
}
