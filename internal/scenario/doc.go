// Package scenario runs YAML rule scenarios against a session.
//
// A scenario names its rule assets, builds facts in order, inserts them,
// optionally fires the rules and then checks fact fields:
//
//	name: enroll
//	assets: [lecture.drl]
//	package: foo.model
//	facts:
//	  - id: physics
//	    type: Lecture
//	    args: [Physics]
//	  - id: alice
//	    type: Student
//	    fields: {name: Alice}
//	fire: true
//	expect:
//	  fired: 1
//	  facts:
//	    - {fact: alice, field: lecture, ref: physics}
//
// A {ref: id} value anywhere in args or fields stands for an earlier fact.
package scenario
