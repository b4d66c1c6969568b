package rdf

// Namespaces
const (
	NSRDF  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NSRDFS = "http://www.w3.org/2000/01/rdf-schema#"
	NSOWL  = "http://www.w3.org/2002/07/owl#"
	NSXSD  = "http://www.w3.org/2001/XMLSchema#"
	NSSH   = "http://www.w3.org/ns/shacl#"
	NSCat  = "https://w3id.org/typecatalog/ontology#"
)

// Core vocabulary
const (
	RDFType       = NSRDF + "type"
	RDFLangString = NSRDF + "langString"

	RDFSSubClassOf = NSRDFS + "subClassOf"
	RDFSLabel      = NSRDFS + "label"
	RDFSComment    = NSRDFS + "comment"
	RDFSDomain     = NSRDFS + "domain"
	RDFSRange      = NSRDFS + "range"

	OWLClass = NSOWL + "Class"

	XSDString   = NSXSD + "string"
	XSDBoolean  = NSXSD + "boolean"
	XSDDateTime = NSXSD + "dateTime"
	XSDInteger  = NSXSD + "integer"
	XSDDecimal  = NSXSD + "decimal"
)

// SHACL shape vocabulary
const (
	SHProperty    = NSSH + "property"
	SHPath        = NSSH + "path"
	SHClass       = NSSH + "class"
	SHDatatype    = NSSH + "datatype"
	SHGroup       = NSSH + "group"
	SHOrder       = NSSH + "order"
	SHName        = NSSH + "name"
	SHDescription = NSSH + "description"
	SHMinCount    = NSSH + "minCount"
	SHMaxCount    = NSSH + "maxCount"
)

// Catalog ontology
const (
	CatConfigurationSnapshot = NSCat + "ConfigurationSnapshot"
	CatStartTime             = NSCat + "startTime"
	CatEditorialNote         = NSCat + "editorialNote"

	CatHasMetadataGraph       = NSCat + "hasMetadataGraph"
	CatHasConsumerGroupGraph  = NSCat + "hasConsumerGroupGraph"
	CatHasInstanceGraph       = NSCat + "hasInstanceGraph"
	CatHasCategoryFilterGraph = NSCat + "hasCategoryFilterGraph"

	CatAbstract           = NSCat + "abstract"
	CatEditWidget         = NSCat + "editWidget"
	CatNestedObjectEditor = NSCat + "NestedObjectEditor"
	CatEditDescription    = NSCat + "editDescription"
	CatViewDescription    = NSCat + "viewDescription"

	CatMainDistribution = NSCat + "mainDistribution"
	CatDistribution     = NSCat + "distribution"
)
