package symbols

// Functions of the target binary.
const (
	Quit             = "quit"
	LoadStateIndex   = "load_state_index"
	SaveStateIndex   = "save_state_index"
	LoadState        = "load_state"
	SaveState        = "save_state"
	ScreenCopy16     = "screen_copy16"
	InitializeBackup = "initialize_backup"
	Malloc           = "malloc"
	Free             = "free"
)

// Variables of the target binary.
const (
	System       = "system"
	GamecardName = "gamecard_name"
	FastForward  = "fast_forward"
	SavestateNum = "savestate_num"
)

// Required lists every name a layout must resolve.
var Required = map[string]Kind{
	Quit:             KindFunction,
	LoadStateIndex:   KindFunction,
	SaveStateIndex:   KindFunction,
	LoadState:        KindFunction,
	SaveState:        KindFunction,
	ScreenCopy16:     KindFunction,
	InitializeBackup: KindFunction,
	Malloc:           KindFunction,
	Free:             KindFunction,
	System:           KindVariable,
	GamecardName:     KindVariable,
	FastForward:      KindVariable,
	SavestateNum:     KindVariable,
}
