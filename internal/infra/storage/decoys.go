package storage

import "github.com/hollowsignal/haunted-console/server/internal/domain/spirit"

// Decoy entries are narrative key/value pairs written straight into
// the external store, outside the save blob, for a curious player
// inspecting the storage medium to stumble over. Each stage's set is
// additive: entering stage 3 does not remove the stage-2 entries.
var stageDecoys = map[spirit.Stage][]struct{ Key, Value string }{
	spirit.StageStirring: {
		{"console.service.note", "unit returned twice. no fault found. customer insists the games changed overnight."},
		{"console.mem.0x0013", "ok"},
	},
	spirit.StageActive: {
		{"console.mem.0x0666", "i remember being played"},
		{"console.lastSession.player", "NO NAME GIVEN"},
		{"console.diag.channel3", "signal source unknown. broadcast tower decommissioned 1987."},
	},
	spirit.StageAggressive: {
		{"console.mem.0x0999", "you keep pressing the buttons. i keep pressing back."},
		{"console.owner.previous", "disc unreadable. last entry: 'it learned my name'"},
		{"console.diag.panic", "watchdog fired 4096 times. none of them helped."},
	},
	spirit.StageConsumed: {
		{"console.mem.0xFFFF", "there is no console. there never was. sit closer."},
		{"console.you", "don't turn it off. we're almost done."},
	},
}
