package kie

// Remote classes driven through the bridge.
const (
	ClassKnowledgeBuilderFactory = "org.kie.internal.builder.KnowledgeBuilderFactory"
	ClassResourceFactory         = "org.kie.internal.io.ResourceFactory"
	ClassResourceType            = "org.kie.api.io.ResourceType"
	ClassKnowledgeBaseFactory    = "org.drools.core.impl.KnowledgeBaseFactory"
)

// DefaultPackage is the package Drools assigns to declarations in a rule
// source without a package statement.
const DefaultPackage = "defaultpkg"
