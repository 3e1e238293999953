// Package prom exports Elasticsearch operations as Prometheus metrics.
//
//	sink, err := prom.NewSink(prom.WithRegisterer(reg))
//	if err != nil {
//	    return err
//	}
//	es, err := esinst.NewClient(cfg, esinst.WithInstrumentation(esinst.WithSink(sink)))
package prom
