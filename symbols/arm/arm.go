package arm

import (
	"github.com/wnxd/microhook/process"
	"github.com/wnxd/microhook/symbols"
)

const reference = 0x083f4000

var _ = symbols.Register(&symbols.Layout{
	Arch:      process.ARCH_ARM,
	Reference: reference,
	Builds: []symbols.Build{
		{Name: "r2.5.2.2", Reference: reference},
		{Name: "r2.5.2.2-mmp", Reference: 0x083f5000},
		{Name: "r2.5.2.0", Reference: 0x083f2000},
	},
	Entries: []symbols.Entry{
		{Name: symbols.System, Kind: symbols.KindVariable, Addr: 0x083f4000},
		{Name: symbols.GamecardName, Kind: symbols.KindVariable, Addr: 0x0847e8e8, Size: 0x10},
		{Name: symbols.SavestateNum, Kind: symbols.KindVariable, Addr: 0x08479780, Size: 4},
		{Name: symbols.FastForward, Kind: symbols.KindVariable, Addr: 0x08006ad0, Size: 4, Opcode: 0xE3A03000},

		{Name: symbols.Free, Kind: symbols.KindFunction, Addr: 0x08003e58},
		{Name: symbols.Malloc, Kind: symbols.KindFunction, Addr: 0x080046e0},
		{Name: symbols.Quit, Kind: symbols.KindFunction, Addr: 0x08006444},
		{Name: symbols.InitializeBackup, Kind: symbols.KindFunction, Addr: 0x08092f40},
		{Name: symbols.LoadState, Kind: symbols.KindFunction, Addr: 0x080951c0},
		{Name: symbols.SaveState, Kind: symbols.KindFunction, Addr: 0x0809580c},
		{Name: symbols.SaveStateIndex, Kind: symbols.KindFunction, Addr: 0x08095c10},
		{Name: symbols.LoadStateIndex, Kind: symbols.KindFunction, Addr: 0x08095ce4},
		{Name: symbols.ScreenCopy16, Kind: symbols.KindFunction, Addr: 0x080a59d8},
	},
})
