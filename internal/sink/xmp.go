package sink

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/raine/stockmeta/internal/platform"
)

// XMPSidecarWriter writes <image>.xmp next to the image.
type XMPSidecarWriter struct{}

type xmpMeta struct {
	XMLName xml.Name `xml:"x:xmpmeta"`
	XMLNSX  string   `xml:"xmlns:x,attr"`
	RDF     xmpRDF   `xml:"rdf:RDF"`
}

type xmpRDF struct {
	XMLNSRDF string         `xml:"xmlns:rdf,attr"`
	Desc     xmpDescription `xml:"rdf:Description"`
}

type xmpDescription struct {
	About          string `xml:"rdf:about,attr"`
	XMLNSDC        string `xml:"xmlns:dc,attr"`
	XMLNSPhotoshop string `xml:"xmlns:photoshop,attr"`
	Category       string `xml:"photoshop:Category,attr,omitempty"`
	Title          xmpAlt `xml:"dc:title"`
	Description    xmpAlt `xml:"dc:description"`
	Subject        xmpBag `xml:"dc:subject"`
}

type xmpAlt struct {
	Items []xmpLangItem `xml:"rdf:Alt>rdf:li"`
}

type xmpLangItem struct {
	Lang  string `xml:"xml:lang,attr"`
	Value string `xml:",chardata"`
}

type xmpBag struct {
	Items []string `xml:"rdf:Bag>rdf:li"`
}

// SidecarPath returns the sidecar file name for an image.
func SidecarPath(imagePath string) string {
	return imagePath + ".xmp"
}

// RenderXMP builds the sidecar document for p.
func RenderXMP(p platform.Projection) ([]byte, error) {
	doc := xmpMeta{
		XMLNSX: "adobe:ns:meta/",
		RDF: xmpRDF{
			XMLNSRDF: "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
			Desc: xmpDescription{
				XMLNSDC:        "http://purl.org/dc/elements/1.1/",
				XMLNSPhotoshop: "http://ns.adobe.com/photoshop/1.0/",
				Category:       p.Category,
				Title:          xmpAlt{Items: []xmpLangItem{{Lang: "x-default", Value: p.Title}}},
				Description:    xmpAlt{Items: []xmpLangItem{{Lang: "x-default", Value: p.Description}}},
				Subject:        xmpBag{Items: p.Keywords},
			},
		},
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(`<?xpacket begin="` + "\ufeff" + `" id="W5M0MpCehiHzreSzNTczkc9d"?>` + "\n")
	b.Write(body)
	b.WriteString("\n<?xpacket end=\"w\"?>\n")
	return []byte(b.String()), nil
}

// WriteMetadata implements MetadataWriter.
func (XMPSidecarWriter) WriteMetadata(path string, p platform.Projection) Result {
	data, err := RenderXMP(p)
	if err != nil {
		return failed(path, "failed to render XMP", err)
	}
	sidecar := SidecarPath(path)
	if err := os.WriteFile(sidecar, data, 0644); err != nil {
		return failed(path, "failed to write sidecar", err)
	}
	return Result{OK: true, Path: path, Message: fmt.Sprintf("XMP sidecar written to %s", sidecar)}
}
