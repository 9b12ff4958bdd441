package handlers

import (
	"fmt"
	"path/filepath"

	"github.com/fenrix-tec/ioxport/core/geometry"
	"github.com/fenrix-tec/ioxport/core/record"
	"github.com/fenrix-tec/ioxport/core/spatial"
)

// Options is everything the factory needs to expand one conversion request
// into its handler set.
type Options struct {
	OutDir          string
	Metadata        record.Metadata
	Formats         []string
	TargetEPSGs     []int
	SourceEPSG      int
	Compression     string
	ContinueOnError bool
	Reprojector     geometry.Reprojector
}

// Build expands the request into one handler per artifact. Spatial
// datasets get the format and EPSG cross product, named "{format}-{epsg}";
// non-spatial datasets get one handler per format, named "{format}-None".
func Build(opts Options) ([]Handler, error) {
	if opts.Metadata.IsSpatial() {
		return buildSpatial(opts)
	}
	return buildTabular(opts)
}

func buildTabular(opts Options) ([]Handler, error) {
	base := tabularHandler{
		fieldIDs:    opts.Metadata.FieldIDs(),
		compression: opts.Compression,
	}

	var built []Handler
	for _, format := range opts.Formats {
		h := base
		h.name = fmt.Sprintf("%s-None", format)
		h.path = filepath.Join(opts.OutDir, fmt.Sprintf("%s.%s", opts.Metadata.Name, format))

		switch format {
		case FormatCSV:
			built = append(built, &csvHandler{h})
		case FormatJSON:
			built = append(built, &jsonHandler{h})
		case FormatXML:
			built = append(built, &xmlHandler{h})
		case FormatYAML:
			built = append(built, &yamlHandler{h})
		case FormatXLSX:
			built = append(built, &xlsxHandler{h})
		default:
			return nil, fmt.Errorf("format %q is not available for non-spatial datasets", format)
		}
	}
	return built, nil
}

func buildSpatial(opts Options) ([]Handler, error) {
	meta := opts.Metadata

	multiType, err := geometry.MultiType(meta.GeometryType)
	if err != nil {
		return nil, err
	}

	properties := make([]spatial.Property, 0, len(meta.Fields))
	for _, f := range meta.Fields {
		if f.ID == record.GeometryField {
			continue
		}
		st, err := record.SchemaType(f.Type)
		if err != nil {
			return nil, err
		}
		properties = append(properties, spatial.Property{Name: f.ID, Type: st})
	}
	schema := spatial.Schema{GeometryType: multiType, Properties: properties}

	var built []Handler
	for _, epsg := range opts.TargetEPSGs {
		transformer := geometry.Transformer{
			SourceEPSG:      opts.SourceEPSG,
			TargetEPSG:      epsg,
			Reprojector:     opts.Reprojector,
			ContinueOnError: opts.ContinueOnError,
		}
		baseName := fmt.Sprintf("%s - %d", meta.Name, epsg)

		for _, format := range opts.Formats {
			name := fmt.Sprintf("%s-%d", format, epsg)

			switch format {
			case FormatCSV:
				built = append(built, &spatialCSVHandler{
					name:        name,
					path:        filepath.Join(opts.OutDir, baseName+".csv"),
					fieldIDs:    meta.FieldIDs(),
					compression: opts.Compression,
					transformer: transformer,
				})
			case FormatGeoJSON, FormatGPKG:
				built = append(built, &layerHandler{
					name:        name,
					path:        filepath.Join(opts.OutDir, fmt.Sprintf("%s.%s", baseName, format)),
					driver:      format,
					schema:      schema,
					targetEPSG:  epsg,
					transformer: transformer,
				})
			case FormatSHP:
				built = append(built, &shapefileHandler{
					name:        name,
					zipPath:     filepath.Join(opts.OutDir, baseName+".zip"),
					baseName:    baseName,
					datasetName: meta.Name,
					outDir:      opts.OutDir,
					fields:      meta.Fields,
					schemaType:  multiType,
					targetEPSG:  epsg,
					transformer: transformer,
				})
			default:
				return nil, fmt.Errorf("format %q is not available for spatial datasets", format)
			}
		}
	}
	return built, nil
}
