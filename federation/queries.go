// federation/queries.go
package federation

import "fmt"

// CohortQuery selects all patients under maxAge that carry imaging, with
// their study memberships joined by the attribute separator. The query text
// itself is opaque to the rest of the gateway.
func CohortQuery(maxAge int) string {
	return fmt.Sprintf(`
PREFIX ex: <http://example.org/>
PREFIX xsd: <http://www.w3.org/2001/XMLSchema#>
SELECT ?patient ?age (GROUP_CONCAT(STR(?st);SEPARATOR="%s") AS ?studies) ?img
WHERE {
  ?patient ex:has_age ?age ;
           ex:has_image ?img ;
           ex:partOf ?st .
  FILTER(xsd:int(?age) < %d)
}
GROUP BY ?patient ?age ?img
`, attributeSeparator, maxAge)
}

// StudiesQuery selects the study memberships of a single entity
func StudiesQuery(entityIRI string) string {
	return fmt.Sprintf(`
PREFIX ex: <http://example.org/>
SELECT ?st WHERE { <%s> ex:partOf ?st . }
`, entityIRI)
}
