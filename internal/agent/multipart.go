package agent

import (
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"
)

// Form is the decoded multipart payload for agent create and update.
// Exactly one knowledge-base variant carries data, selected by Type.
type Form struct {
	Name              string
	Persona           string
	AuthorizedDomains []string
	Type              KnowledgeBaseType
	Links             []WebLink
	FreeText          string
	Documents         []*multipart.FileHeader
	Avatar            *multipart.FileHeader
}

// DecodeForm parses the dotted multipart field convention used by the
// dashboard:
//
//	agentName, persona, authorizedDomains (repeated)
//	knowledgeBase.type            links | documents | plaintext
//	knowledgeBase.links[i].url    with knowledgeBase.links[i].isSpa
//	knowledgeBase.freeText
//	knowledgeBase.documents       file parts
//	avatar                        file part
//
// Malformed values fail decoding; nothing is partially applied.
func DecodeForm(form *multipart.Form) (*Form, error) {
	f := &Form{
		Name:              firstValue(form, "agentName"),
		Persona:           firstValue(form, "persona"),
		AuthorizedDomains: form.Value["authorizedDomains"],
		FreeText:          firstValue(form, "knowledgeBase.freeText"),
	}
	if f.Name == "" {
		return nil, fmt.Errorf("agentName is required")
	}

	switch kb := firstValue(form, "knowledgeBase.type"); KnowledgeBaseType(kb) {
	case KnowledgeBaseLinks, KnowledgeBaseDocuments, KnowledgeBasePlainText:
		f.Type = KnowledgeBaseType(kb)
	default:
		return nil, fmt.Errorf("unknown knowledgeBase.type %q", kb)
	}

	links, err := decodeLinks(form)
	if err != nil {
		return nil, err
	}
	f.Links = links

	f.Documents = form.File["knowledgeBase.documents"]
	if avatars := form.File["avatar"]; len(avatars) > 0 {
		f.Avatar = avatars[0]
	}

	switch f.Type {
	case KnowledgeBaseLinks:
		if len(f.Links) == 0 {
			return nil, fmt.Errorf("knowledgeBase.links is required for links agents")
		}
	case KnowledgeBaseDocuments:
		if len(f.Documents) == 0 {
			return nil, fmt.Errorf("knowledgeBase.documents is required for documents agents")
		}
	case KnowledgeBasePlainText:
		if strings.TrimSpace(f.FreeText) == "" {
			return nil, fmt.Errorf("knowledgeBase.freeText is required for plaintext agents")
		}
	}

	return f, nil
}

func decodeLinks(form *multipart.Form) ([]WebLink, error) {
	var links []WebLink
	for i := 0; ; i++ {
		urlField := fmt.Sprintf("knowledgeBase.links[%d].url", i)
		urls, ok := form.Value[urlField]
		if !ok {
			break
		}
		if len(urls) == 0 || urls[0] == "" {
			return nil, fmt.Errorf("%s is empty", urlField)
		}

		link := WebLink{URL: urls[0]}
		spaField := fmt.Sprintf("knowledgeBase.links[%d].isSpa", i)
		if raw := firstValue(form, spaField); raw != "" {
			isSPA, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", spaField, err)
			}
			link.IsSPA = isSPA
		}
		links = append(links, link)
	}
	return links, nil
}

func firstValue(form *multipart.Form, field string) string {
	if values := form.Value[field]; len(values) > 0 {
		return values[0]
	}
	return ""
}
