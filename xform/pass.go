// Package xform holds the target-independent pieces of the transform
// pipeline: the pass base every lowering pass builds on, the
// used-register backwards dataflow, and the naive generic variable
// layout that platform layouts extend.
package xform

import (
	"fmt"

	"github.com/ngenio/ngen/internal/ngenlog"
	"github.com/ngenio/ngen/ir"
)

// Pass is the shape every listing-to-listing transform follows: a
// hook before the first instruction, one per instruction, and a hook
// after the last, building a fresh Listing rather than mutating the
// one it reads, keeping a single writer per listing at any time.
type Pass interface {
	// Before runs once, after the context's Out listing has been
	// seeded with the input's variable/part graph and parameters.
	Before(ctx *Context) error
	// During runs once per input instruction, in order. Implementations
	// append zero or more instructions to ctx.Out themselves (a single
	// input instruction commonly lowers to several output instructions).
	During(ctx *Context, index int, instr ir.Instr) error
	// After runs once, after every input instruction has been processed.
	After(ctx *Context) error
}

// Context carries the input listing being read, the output listing
// being built, and pass-local scratch state (the current live-register
// set, an in-progress parameter buffer, and so on) that a concrete
// pass's Before/During/After hooks share across calls.
type Context struct {
	Src *ir.Listing
	Out *ir.Listing

	// Scratch is free for a concrete pass to stash whatever per-run
	// state it needs between During calls; the x64 and x86 passes keep
	// their state in their own struct fields and leave it unused.
	Scratch any
}

// Run seeds a fresh output listing from src's variable/part graph and
// parameters, then drives pass's Before/During/After hooks over every
// instruction of src.
func Run(pass Pass, src *ir.Listing) (*ir.Listing, error) {
	log := ngenlog.Default.With("pass", fmt.Sprintf("%T", pass))
	log.Debugf("running over %d instructions", src.Count())

	out := ir.NewListing()
	seedGraph(out, src)
	if t, ok := src.Result(); ok {
		out.SetResult(t)
	}
	if src.ExceptionHandler() {
		out.UseExceptionHandler()
	}
	ctx := &Context{Src: src, Out: out}

	if err := pass.Before(ctx); err != nil {
		return nil, err
	}
	for i := 0; i < src.Count(); i++ {
		if err := pass.During(ctx, i, src.At(i)); err != nil {
			log.Debugf("failed at instruction %d: %v", i, err)
			return nil, err
		}
	}
	if err := pass.After(ctx); err != nil {
		return nil, err
	}
	log.Debugf("produced %d instructions", ctx.Out.Count())
	return ctx.Out, nil
}

// seedGraph replays src's part and variable creation calls against out
// in creation order, so that every ir.Part and ir.Variable id already
// used by src's instructions resolves identically in out: a parent
// part is always created before its children, so CreateBlock/CreatePart
// always hands back the same index the original allocation did.
func seedGraph(out, src *ir.Listing) {
	for p := 1; p < src.PartCount(); p++ {
		part := ir.Part(p)
		parent := src.Parent(part)
		if src.First(part) {
			out.CreateBlock(parent)
		} else {
			out.CreatePart(parent)
		}
	}
	for _, v := range src.AllVars() {
		if src.IsParam(v) {
			out.CreateParam(src.ParamDesc(v))
		} else {
			out.CreateVar(src.VarPart(v), src.VarSize(v), src.FreeFn(v), src.FreeOpt(v))
		}
	}
}
