package rdf

// Vocabulary used by the processors.
const (
	NamespaceRDF = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NamespaceOWL = "http://www.w3.org/2002/07/owl#"
	NamespaceXSD = "http://www.w3.org/2001/XMLSchema#"
)

var (
	// RDFType is rdf:type.
	RDFType = IRI{Value: NamespaceRDF + "type"}
	// OWLSameAs is owl:sameAs, the default equivalence predicate.
	OWLSameAs = IRI{Value: NamespaceOWL + "sameAs"}
	// XSDLong is xsd:long.
	XSDLong = IRI{Value: NamespaceXSD + "long"}
	// XSDString is xsd:string.
	XSDString = IRI{Value: NamespaceXSD + "string"}
)
