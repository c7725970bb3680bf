package config

// StarterTemplate is written by `bathyfetch init`. It mirrors the defaults so
// a fresh install works against the public archives without edits.
const StarterTemplate = `version: 1

# Root directory for cached downloads, manifests and the tile-scheme catalog.
output_root: ~/bathyfetch-data

region: us-east-1

raster:
  bucket: noaa-ocs-nationalbathymetry-pds
  tile_prefix: BlueTopo/
  scheme_prefix: BlueTopo/_BlueTopo_Tile_Scheme/

trackline:
  bucket: noaa-dcdb-bathymetry-pds
  key_prefix: csb/csv/

chart_service:
  url: https://gis.charttools.noaa.gov/arcgis/rest/services/MarineChart_Services/Status_New_NOAA_ENCs/MapServer
  bands: [1, 2, 3, 4]

track_service:
  url: https://gis.ngdc.noaa.gov/arcgis/rest/services/csb/MapServer/1

http:
  timeout_seconds: 120

# Optional downstream calculation, invoked after a cross-reference run:
#   <bin> <args...> <raster-manifest> <trackline-manifest> <output-root>
# batch:
#   bin: vbi_compare
#   args: ["--mode", "batch"]
`
