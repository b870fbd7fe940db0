package pdfa

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/rezonia/facturx-service/internal/model"
)

// AttachmentName is the embedded file name mandated by the Factur-X
// standard. Receiving systems locate the payload by this exact name, so it is
// part of the interop contract.
const AttachmentName = "factur-x.xml"

var pdfcpuSetup sync.Once

// validateBase gates the embedder on the base PDF actually being a PDF.
// This is the dominant real-world failure mode: the upstream renderer
// produced garbage, which must surface as a distinct error domain from
// invalid invoice data.
func validateBase(basePDF []byte) error {
	pdfcpuSetup.Do(func() { api.DisableConfigDir() })

	ctx, err := api.ReadContext(bytes.NewReader(basePDF), pdfmodel.NewDefaultConfiguration())
	if err != nil {
		return model.NewEmbeddingError("parse", "base PDF is not parseable", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return model.NewEmbeddingError("validate", "base PDF failed structural validation", err)
	}
	return nil
}

// EmbedXML produces the compliant document: the base PDF bytes followed by an
// incremental update that adds the embedded-file stream, its file
// specification, the PDF/A-3 XMP metadata and a catalog referencing all
// three. The input slice is never mutated.
func EmbedXML(basePDF, xmlPayload []byte, profile model.Profile) ([]byte, error) {
	if !bytes.HasPrefix(basePDF, []byte("%PDF-")) {
		return nil, model.NewEmbeddingError("header", "input does not start with a PDF header", nil)
	}
	if err := validateBase(basePDF); err != nil {
		return nil, err
	}

	trailer, err := readTrailer(basePDF)
	if err != nil {
		return nil, model.NewEmbeddingError("trailer", "cannot read trailer", err)
	}
	sizeVal, ok := dictGet(trailer.entries, "Size")
	if !ok {
		return nil, model.NewEmbeddingError("trailer", "trailer has no /Size", nil)
	}
	size, err := strconv.Atoi(sizeVal)
	if err != nil || size < 1 {
		return nil, model.NewEmbeddingError("trailer", "trailer /Size is not a positive integer", err)
	}
	rootVal, ok := dictGet(trailer.entries, "Root")
	if !ok {
		return nil, model.NewEmbeddingError("trailer", "trailer has no /Root", nil)
	}
	rootNum, rootGen, ok := parseRef(rootVal)
	if !ok {
		return nil, model.NewEmbeddingError("trailer", "trailer /Root is not a reference", nil)
	}
	if rootGen != 0 {
		return nil, model.NewEmbeddingError("catalog", "catalog with non-zero generation is unsupported", nil)
	}

	catalogSrc, err := findObjectDict(basePDF, rootNum, rootGen)
	if err != nil {
		return nil, model.NewEmbeddingError("catalog", "cannot locate document catalog", err)
	}
	catalog, err := parseDict(catalogSrc)
	if err != nil {
		return nil, model.NewEmbeddingError("catalog", "cannot parse document catalog", err)
	}

	w := NewIncrementalWriter(basePDF)
	fileObj := size
	specObj := size + 1
	metaObj := size + 2
	namesObj := size + 3
	nextFree := size + 4

	w.StreamObj(fileObj,
		fmt.Sprintf("/Type /EmbeddedFile /Subtype /text#2Fxml /Params << /Size %d >>", len(xmlPayload)),
		xmlPayload)

	w.DictObj(specObj, fmt.Sprintf(
		"<< /Type /Filespec /F (%s) /UF (%s) /Desc (Factur-X invoice data) /AFRelationship /%s /EF << /F %d 0 R /UF %d 0 R >> >>",
		AttachmentName, AttachmentName, profile.AttachmentRelationship(), fileObj, fileObj))

	w.StreamObj(metaObj, "/Type /Metadata /Subtype /XML", xmpPacket(profile))

	w.DictObj(namesObj, fmt.Sprintf("<< /Names [(%s) %d 0 R] >>", AttachmentName, specObj))

	catalog, err = updateCatalog(basePDF, catalog, w, specObj, metaObj, namesObj)
	if err != nil {
		return nil, err
	}
	w.DictObj(rootNum, rebuildDict(catalog))

	newTrailer := []dictEntry{
		{Key: "Size", Value: strconv.Itoa(nextFree)},
		{Key: "Root", Value: rootVal},
		{Key: "Prev", Value: strconv.FormatInt(trailer.startXref, 10)},
	}
	if info, ok := dictGet(trailer.entries, "Info"); ok {
		newTrailer = append(newTrailer, dictEntry{Key: "Info", Value: info})
	}
	if id, ok := dictGet(trailer.entries, "ID"); ok {
		newTrailer = append(newTrailer, dictEntry{Key: "ID", Value: id})
	}

	if trailer.xrefStream {
		// an update to a file using cross-reference streams must itself use one
		xrefObj := nextFree
		newTrailer[0].Value = strconv.Itoa(nextFree + 1)
		var entries bytes.Buffer
		for _, e := range newTrailer {
			fmt.Fprintf(&entries, "/%s %s ", e.Key, e.Value)
		}
		return w.FinishXRefStream(xrefObj, entries.String()), nil
	}
	return w.FinishTable(rebuildDict(newTrailer)), nil
}

// updateCatalog sets /AF, /Metadata and /Names on the catalog entries,
// merging into an existing /AF array or /Names dictionary rather than
// clobbering what the document already declares. When either is an indirect
// reference the referenced object is superseded through the writer.
func updateCatalog(base []byte, catalog []dictEntry, w *Writer, specObj, metaObj, namesObj int) ([]dictEntry, error) {
	catalog, err := mergeAssociatedFiles(base, catalog, w, specObj)
	if err != nil {
		return nil, err
	}
	catalog = dictSet(catalog, "Metadata", fmt.Sprintf("%d 0 R", metaObj))

	embedded := fmt.Sprintf("%d 0 R", namesObj)

	existing, ok := dictGet(catalog, "Names")
	if !ok {
		return dictSet(catalog, "Names", fmt.Sprintf("<< /EmbeddedFiles %s >>", embedded)), nil
	}

	if num, gen, isRef := parseRef(existing); isRef {
		if gen != 0 {
			return nil, model.NewEmbeddingError("names", "name dictionary with non-zero generation is unsupported", nil)
		}
		src, err := findObjectDict(base, num, gen)
		if err != nil {
			return nil, model.NewEmbeddingError("names", "cannot locate name dictionary", err)
		}
		names, err := parseDict(src)
		if err != nil {
			return nil, model.NewEmbeddingError("names", "cannot parse name dictionary", err)
		}
		names = dictSet(names, "EmbeddedFiles", embedded)
		w.DictObj(num, rebuildDict(names))
		return catalog, nil
	}

	if bytes.HasPrefix([]byte(existing), []byte("<<")) {
		names, err := parseDict([]byte(existing))
		if err != nil {
			return nil, model.NewEmbeddingError("names", "cannot parse inline name dictionary", err)
		}
		names = dictSet(names, "EmbeddedFiles", embedded)
		return dictSet(catalog, "Names", rebuildDict(names)), nil
	}

	return nil, model.NewEmbeddingError("names", "catalog /Names is neither a dictionary nor a reference", nil)
}

// mergeAssociatedFiles appends the new file specification to the catalog /AF
// array, preserving associated files the document already declares. An /AF
// held in its own indirect object is superseded in place so the catalog entry
// keeps pointing at it.
func mergeAssociatedFiles(base []byte, catalog []dictEntry, w *Writer, specObj int) ([]dictEntry, error) {
	ref := fmt.Sprintf("%d 0 R", specObj)

	existing, ok := dictGet(catalog, "AF")
	if !ok {
		return dictSet(catalog, "AF", "["+ref+"]"), nil
	}

	if strings.HasPrefix(existing, "[") {
		merged, err := appendToArray(existing, ref)
		if err != nil {
			return nil, model.NewEmbeddingError("af", "cannot parse catalog /AF array", err)
		}
		return dictSet(catalog, "AF", merged), nil
	}

	if num, gen, isRef := parseRef(existing); isRef {
		if gen != 0 {
			return nil, model.NewEmbeddingError("af", "associated-files array with non-zero generation is unsupported", nil)
		}
		src, err := findObjectValue(base, num, gen)
		if err != nil {
			return nil, model.NewEmbeddingError("af", "cannot locate associated-files array", err)
		}
		merged, err := appendToArray(string(src), ref)
		if err != nil {
			return nil, model.NewEmbeddingError("af", "catalog /AF does not reference an array", err)
		}
		w.Obj(num, merged)
		return catalog, nil
	}

	return nil, model.NewEmbeddingError("af", "catalog /AF is neither an array nor a reference", nil)
}

// appendToArray inserts one element before the closing bracket of an array's
// source text.
func appendToArray(src, element string) (string, error) {
	end := strings.LastIndexByte(src, ']')
	if !strings.HasPrefix(src, "[") || end < 0 {
		return "", fmt.Errorf("not an array: %s", src)
	}
	return strings.TrimRight(src[:end], " \t\r\n") + " " + element + "]", nil
}
