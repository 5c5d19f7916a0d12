// Package config loads the YAML configuration of a trackpool run.
//
// # Structure
//
//	reference:
//	  - {name: chr1, length: 248956422}
//	tracks:
//	  - name: dbsnp
//	    format: bed
//	    path: ${DATA_DIR}/dbsnp.bed.gz
//	    storage: auto      # auto, stream or indexed
//	    flashback: 64      # stream tracks only; -1 disables
//	    max_resources: 8   # indexed tracks only
//	traversal:
//	  workers: 8
//	  shard_size: 1000000
//	logging:
//	  level: info
//	metrics:
//	  enabled: true
//	  address: ":9090"
//	tracing:
//	  enabled: false
//
// # Environment
//
// ${VAR} references in the file are replaced from the environment before
// parsing. Scalar settings can be overridden with TRACKPOOL_* variables or
// command line flags through Overlay, e.g. TRACKPOOL_TRAVERSAL_WORKERS=4.
//
// # Storage
//
// With storage auto, standard input and compressed files are served as
// streams and plain files are indexed.
package config
