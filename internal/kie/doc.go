// Package kie drives a Drools rules engine running behind the bridge.
//
// The usual path is one call:
//
//	s, err := kie.FromAssets(ctx, gateway.Config{LibDir: lib}, kie.Files("rules.drl"))
//	defer s.Close(ctx)
//
//	lecture, _ := s.Package("foo.model").Type(ctx, "Lecture")
//	math, _ := lecture.New(ctx, []any{"Math"}, nil)
//	s.Insert(ctx, math)
//	s.FireAllRules(ctx)
//
// Builder, Base and Session can also be driven step by step over any
// bridge.Caller.
//
// Every wrapper holding a remote object releases it through a runtime
// cleanup once the wrapper is unreachable. Sessions additionally dispose
// their working memory that way unless created WithoutAutoDispose.
package kie
