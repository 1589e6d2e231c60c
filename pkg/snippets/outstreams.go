package snippets

import "github.com/ormasoftchile/ravenwf/pkg/xmltree"

// OutStream is the common view over Print and Plot outstreams.
type OutStream struct{ Base }

// AsOutStream wraps any outstream node.
func AsOutStream(n *xmltree.Node) OutStream {
	return OutStream{wrap(n, Identity{Class: ClassOutStreams, Tag: n.Tag, Subtype: n.Get("subType")})}
}

// Source returns the source data object name.
func (o OutStream) Source() string { return o.text("source") }

// SetSource sets the source data object by name.
func (o OutStream) SetSource(name string) { o.setText("source", name) }

var printID = Identity{Class: ClassOutStreams, Tag: "Print"}

// PrintOutStream writes a data object to CSV.
type PrintOutStream struct{ OutStream }

// NewPrintOutStream creates a Print outstream of type csv.
func NewPrintOutStream(name string) PrintOutStream {
	return PrintOutStream{OutStream{newBase(printID, name, Elem{Tag: "type", Value: "csv"})}}
}

// AsPrintOutStream wraps an existing <Print> node.
func AsPrintOutStream(n *xmltree.Node) PrintOutStream {
	return PrintOutStream{OutStream{wrap(n, printID)}}
}

// AddParameter appends a <name>value</name> setting.
func (p PrintOutStream) AddParameter(name string, value any) {
	p.node.SubElement(name).Text = value
}

var optPathID = Identity{Class: ClassOutStreams, Tag: "Plot", Subtype: "OptPath"}

// OptPathPlot plots the optimization path of a variable set.
type OptPathPlot struct{ OutStream }

// NewOptPathPlot creates an OptPath plot.
func NewOptPathPlot(name string) OptPathPlot { return OptPathPlot{OutStream{newBase(optPathID, name)}} }

// AsOptPathPlot wraps an existing OptPath plot node.
func AsOptPathPlot(n *xmltree.Node) OptPathPlot { return OptPathPlot{OutStream{wrap(n, optPathID)}} }

// Variables is the live list of plotted variables.
func (p OptPathPlot) Variables() *ListView { return p.list("vars") }

var dispatchPlotID = Identity{Class: ClassOutStreams, Tag: "Plot", Subtype: "HERON.DispatchPlot"}

// HeronDispatchPlot plots dispatch over macro and micro time steps.
type HeronDispatchPlot struct{ OutStream }

// NewHeronDispatchPlot creates a dispatch plot.
func NewHeronDispatchPlot(name string) HeronDispatchPlot {
	return HeronDispatchPlot{OutStream{newBase(dispatchPlotID, name)}}
}

// AsHeronDispatchPlot wraps an existing dispatch plot node.
func AsHeronDispatchPlot(n *xmltree.Node) HeronDispatchPlot {
	return HeronDispatchPlot{OutStream{wrap(n, dispatchPlotID)}}
}

// MacroVariable returns the macro (year) variable.
func (p HeronDispatchPlot) MacroVariable() string { return p.text("macro_variable") }

// SetMacroVariable sets the macro (year) variable.
func (p HeronDispatchPlot) SetMacroVariable(v string) { p.setText("macro_variable", v) }

// MicroVariable returns the micro (time) variable.
func (p HeronDispatchPlot) MicroVariable() string { return p.text("micro_variable") }

// SetMicroVariable sets the micro (time) variable.
func (p HeronDispatchPlot) SetMicroVariable(v string) { p.setText("micro_variable", v) }

// Signals is the live list of plotted signals.
func (p HeronDispatchPlot) Signals() *ListView { return p.list("signals") }

var cashFlowPlotID = Identity{Class: ClassOutStreams, Tag: "Plot", Subtype: "TEAL.CashFlowPlot"}

// TealCashFlowPlot plots component cash flows.
type TealCashFlowPlot struct{ OutStream }

// NewTealCashFlowPlot creates a cash flow plot.
func NewTealCashFlowPlot(name string) TealCashFlowPlot {
	return TealCashFlowPlot{OutStream{newBase(cashFlowPlotID, name)}}
}

// AsTealCashFlowPlot wraps an existing cash flow plot node.
func AsTealCashFlowPlot(n *xmltree.Node) TealCashFlowPlot {
	return TealCashFlowPlot{OutStream{wrap(n, cashFlowPlotID)}}
}
