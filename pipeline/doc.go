/*

Process of building an IR graph

Assembly Listing ->
	asm.ParseListing ->
Program (asm) + Symbols (symtab) ->
	asm.Disassembler.DisMultiBlock ->
Basic Blocks (asm) ->
	ir.Builder + lift.Lifter ->
IR Graph (ir) ->
	opt.Normalize ->
Normalized IR Graph ->
	opt.Simplify loop of
		df.DeadSimp
		opt.RemoveEmptyAssignBlocks
		opt.RemoveJmpBlocks
		opt.MergeBlocks ->
Simplified IR Graph ->
	format.Export ->
View (text, dot, msgpack)

*/
package pipeline
