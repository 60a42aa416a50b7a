package arm64

import (
	"github.com/wnxd/microhook/process"
	"github.com/wnxd/microhook/symbols"
)

const reference = 0x00000000007c5b80

var _ = symbols.Register(&symbols.Layout{
	Arch:      process.ARCH_ARM64,
	Reference: reference,
	Builds: []symbols.Build{
		{Name: "r2.5.2.3", Reference: reference},
		{Name: "r2.5.2.3-tsp", Reference: 0x00000000007c6b80},
	},
	Entries: []symbols.Entry{
		{Name: symbols.System, Kind: symbols.KindVariable, Addr: 0x00000000007c5b80},
		{Name: symbols.GamecardName, Kind: symbols.KindVariable, Addr: 0x0000000000850468, Size: 0x10},
		{Name: symbols.SavestateNum, Kind: symbols.KindVariable, Addr: 0x000000000084b300, Size: 4},
		{Name: symbols.FastForward, Kind: symbols.KindVariable, Addr: 0x0000000000408c7c, Size: 4, Opcode: 0x52800003},

		{Name: symbols.Free, Kind: symbols.KindFunction, Addr: 0x0000000000404a10},
		{Name: symbols.Malloc, Kind: symbols.KindFunction, Addr: 0x0000000000405140},
		{Name: symbols.Quit, Kind: symbols.KindFunction, Addr: 0x0000000000408530},
		{Name: symbols.InitializeBackup, Kind: symbols.KindFunction, Addr: 0x00000000004a17d0},
		{Name: symbols.LoadState, Kind: symbols.KindFunction, Addr: 0x00000000004a4c40},
		{Name: symbols.SaveState, Kind: symbols.KindFunction, Addr: 0x00000000004a5330},
		{Name: symbols.SaveStateIndex, Kind: symbols.KindFunction, Addr: 0x00000000004a57a0},
		{Name: symbols.LoadStateIndex, Kind: symbols.KindFunction, Addr: 0x00000000004a5880},
		{Name: symbols.ScreenCopy16, Kind: symbols.KindFunction, Addr: 0x00000000004b8e24},
	},
})
