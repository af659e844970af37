package detection

// Comment matches every HTML comment in the document
var Comment = SignalType{
	Name:         "Comment",
	DefaultXPath: "//comment()",
}
