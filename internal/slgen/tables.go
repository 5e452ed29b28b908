package slgen

import "scratchlove/internal/svalue"

// inputTypes declares, for a subset of stack-block opcodes, the
// expected type of each named input. The generator wraps each
// subtree with slir.ToType using these entries; absent
// entries mean the input is taken as-is (e.g. data_setvariableto's
// VALUE, which accepts any Scratch value).
var inputTypes = map[string]map[string]svalue.Type{
	"motion_movesteps":      {"STEPS": svalue.Number},
	"motion_gotoxy":         {"X": svalue.Number, "Y": svalue.Number},
	"motion_setx":           {"X": svalue.Number},
	"motion_sety":           {"Y": svalue.Number},
	"motion_changexby":      {"DX": svalue.Number},
	"motion_changeyby":      {"DY": svalue.Number},
	"motion_setdirection":   {"DIRECTION": svalue.Number},
	"looks_say":             {"MESSAGE": svalue.String},
	"looks_think":           {"MESSAGE": svalue.String},
	"control_if":            {"CONDITION": svalue.Boolean},
	"control_if_else":       {"CONDITION": svalue.Boolean},
	"control_repeat":        {"TIMES": svalue.Number},
	"control_repeat_until":  {"CONDITION": svalue.Boolean},
	"control_wait":          {"DURATION": svalue.Number},
	"control_wait_until":    {"CONDITION": svalue.Boolean},
	"data_changevariableby": {"VALUE": svalue.NumberOrNaN},
}

// operatorInputTypes declares the expected input types for reporter
// (input-opcode) operators.
var operatorInputTypes = map[string]map[string]svalue.Type{
	"operator_add":      {"NUM1": svalue.Number, "NUM2": svalue.Number},
	"operator_subtract": {"NUM1": svalue.Number, "NUM2": svalue.Number},
	"operator_multiply": {"NUM1": svalue.Number, "NUM2": svalue.Number},
	"operator_divide":   {"NUM1": svalue.Number, "NUM2": svalue.Number},
	"operator_mod":      {"NUM1": svalue.Number, "NUM2": svalue.Number},
	"operator_and":      {"OPERAND1": svalue.Boolean, "OPERAND2": svalue.Boolean},
	"operator_or":       {"OPERAND1": svalue.Boolean, "OPERAND2": svalue.Boolean},
	"operator_not":      {"OPERAND": svalue.Boolean},
	"operator_join":     {"STRING1": svalue.String, "STRING2": svalue.String},
	"operator_mathop":   {"NUM": svalue.Number},
}

// operatorOutputTypes declares each operator reporter's static output
// type.
var operatorOutputTypes = map[string]svalue.Type{
	"operator_add":      svalue.NumberOrNaN,
	"operator_subtract": svalue.NumberOrNaN,
	"operator_multiply": svalue.NumberOrNaN,
	"operator_divide":   svalue.NumberOrNaN,
	"operator_mod":      svalue.NumberOrNaN,
	"operator_equals":   svalue.Boolean,
	"operator_gt":       svalue.Boolean,
	"operator_lt":       svalue.Boolean,
	"operator_and":      svalue.Boolean,
	"operator_or":       svalue.Boolean,
	"operator_not":      svalue.Boolean,
	"operator_join":     svalue.String,
	"operator_length":   svalue.NumberPosInt | svalue.NumberZero,
	"operator_mathop":   svalue.NumberOrNaN,
}

// executableHats are hat opcodes that run once per trigger.
// conditionHats are re-evaluated every tick by the scheduler and are
// never emitted into the script body.
var executableHats = map[string]bool{
	"event_whenflagclicked":       true,
	"event_whenkeypressed":        true,
	"event_whenbroadcastreceived": true,
	"control_start_as_clone":      true,
}

var conditionHats = map[string]bool{
	"event_whengreaterthan":      true,
	"event_whenbackdropswitches": true,
}

// waitOpcodes suspend the thread until some external condition fires.
var waitOpcodes = map[string]bool{
	"control_wait":           true,
	"control_wait_until":     true,
	"looks_sayforsecs":       true,
	"looks_thinkforsecs":     true,
	"event_broadcastandwait": true,
	"sound_playuntildone":    true,
	"motion_glideto":         true,
}
