package detection

// ScriptTag matches script sources. It is not part of the default
// registry and has to be enabled explicitly.
var ScriptTag = SignalType{
	Name:         "ScriptTag",
	DefaultXPath: "//script/@src",
}
