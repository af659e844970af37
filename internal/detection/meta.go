package detection

// MetaTag matches the content attribute of every meta element. A bare
// meta element has no text, so rules that target a specific tag set their
// own xpath, e.g. //meta[@name="generator"]/@content.
var MetaTag = SignalType{
	Name:         "MetaTag",
	DefaultXPath: "//meta/@content",
}
