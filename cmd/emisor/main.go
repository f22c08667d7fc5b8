package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tu-usuario/facturacion-sii/internal/application/emission"
	"github.com/tu-usuario/facturacion-sii/internal/application/reports"
	"github.com/tu-usuario/facturacion-sii/internal/infrastructure/caf"
	"github.com/tu-usuario/facturacion-sii/internal/infrastructure/folio"
	"github.com/tu-usuario/facturacion-sii/internal/infrastructure/postgres"
	infrasii "github.com/tu-usuario/facturacion-sii/internal/infrastructure/sii"
	"github.com/tu-usuario/facturacion-sii/pkg/config"
	"github.com/tu-usuario/facturacion-sii/pkg/logger"
)

const uso = `uso: emisor <comando> [flags]

comandos:
  emitir   emite un documento descrito en JSON (-archivo o stdin)
  enviar   despacha un documento emitido (-tipo, -folio)
  anular   marca un documento como anulado (-tipo, -folio)
  rvd      genera el resumen de ventas diarias (-dia AAAA-MM-DD)
  consumo  genera el consumo de folios (-desde, -hasta AAAA-MM-DD)
  libro    genera el libro de boletas del mes (-periodo AAAA-MM)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, uso)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("ambiente_sii", cfg.SII.Ambiente).
		Msg("iniciando emisor")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	cert, err := infrasii.LoadCertificate(cfg.SII.CertPath, cfg.SII.CertPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("cargar certificado del contribuyente")
	}

	dteRepo := postgres.NewDTERepository(pool)
	counterStore := postgres.NewFolioCounterRepository(pool)
	rangos := caf.NewDirSource(cfg.SII)
	allocator := folio.NewAllocator(rangos, counterStore, log)
	firma := infrasii.NewFirmaService()

	emitter := emission.NewEmitter(
		allocator, rangos, dteRepo,
		infrasii.NewXMLBuilderService(),
		infrasii.NewTimbreService(),
		firma,
		nil, // colaborador de transporte: fuera de este despliegue
		cert, cfg.SII, log,
	)
	reporter := reports.NewReportBuilder(dteRepo, firma, cert, cfg.SII, log)

	if err := run(ctx, os.Args[1], os.Args[2:], emitter, reporter); err != nil {
		log.Fatal().Err(err).Str("comando", os.Args[1]).Msg("comando fallido")
	}
}

func run(ctx context.Context, comando string, args []string, emitter *emission.Emitter, reporter *reports.ReportBuilder) error {
	switch comando {
	case "emitir":
		return cmdEmitir(ctx, args, emitter)
	case "enviar":
		return cmdEnviar(ctx, args, emitter)
	case "anular":
		return cmdAnular(ctx, args, emitter)
	case "rvd":
		return cmdRVD(ctx, args, reporter)
	case "consumo":
		return cmdConsumo(ctx, args, reporter)
	case "libro":
		return cmdLibro(ctx, args, reporter)
	default:
		fmt.Fprint(os.Stderr, uso)
		return fmt.Errorf("comando desconocido %q", comando)
	}
}

func cmdEmitir(ctx context.Context, args []string, emitter *emission.Emitter) error {
	fs := flag.NewFlagSet("emitir", flag.ExitOnError)
	archivo := fs.String("archivo", "", "JSON con la solicitud de emisión; vacío = stdin")
	salida := fs.String("salida", "", "archivo para el XML firmado; vacío = no escribir")
	fs.Parse(args)

	var data []byte
	var err error
	if *archivo != "" {
		data, err = os.ReadFile(*archivo)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("leer solicitud: %w", err)
	}

	var in emission.EmitInput
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("parsear solicitud: %w", err)
	}

	d, err := emitter.Emit(ctx, in)
	if err != nil {
		return err
	}
	fmt.Printf("emitido tipo %d folio %d total %d\n", d.TipoDTE, d.Folio, d.Totales.Total)

	if *salida != "" {
		if err := os.WriteFile(*salida, d.XMLFirmado, 0o644); err != nil {
			return fmt.Errorf("escribir XML firmado: %w", err)
		}
	}
	return nil
}

func cmdEnviar(ctx context.Context, args []string, emitter *emission.Emitter) error {
	fs := flag.NewFlagSet("enviar", flag.ExitOnError)
	tipo := fs.Int("tipo", 0, "tipo de documento")
	folioNum := fs.Int64("folio", 0, "folio del documento")
	fs.Parse(args)

	trackID, err := emitter.Enviar(ctx, *tipo, *folioNum)
	if err != nil {
		return err
	}
	fmt.Printf("enviado, track %s\n", trackID)
	return nil
}

func cmdAnular(ctx context.Context, args []string, emitter *emission.Emitter) error {
	fs := flag.NewFlagSet("anular", flag.ExitOnError)
	tipo := fs.Int("tipo", 0, "tipo de documento")
	folioNum := fs.Int64("folio", 0, "folio del documento")
	fs.Parse(args)

	return emitter.Anular(ctx, *tipo, *folioNum)
}

func cmdRVD(ctx context.Context, args []string, reporter *reports.ReportBuilder) error {
	fs := flag.NewFlagSet("rvd", flag.ExitOnError)
	dia := fs.String("dia", time.Now().Format("2006-01-02"), "día del resumen")
	salida := fs.String("salida", "", "archivo de salida; vacío = stdout")
	fs.Parse(args)

	fecha, err := time.Parse("2006-01-02", *dia)
	if err != nil {
		return fmt.Errorf("parsear -dia: %w", err)
	}
	out, err := reporter.VentasDiarias(ctx, fecha)
	if err != nil {
		return err
	}
	return escribir(*salida, out)
}

func cmdConsumo(ctx context.Context, args []string, reporter *reports.ReportBuilder) error {
	fs := flag.NewFlagSet("consumo", flag.ExitOnError)
	desde := fs.String("desde", "", "inicio del período (AAAA-MM-DD)")
	hasta := fs.String("hasta", "", "fin del período (AAAA-MM-DD)")
	salida := fs.String("salida", "", "archivo de salida; vacío = stdout")
	fs.Parse(args)

	ini, err := time.Parse("2006-01-02", *desde)
	if err != nil {
		return fmt.Errorf("parsear -desde: %w", err)
	}
	fin, err := time.Parse("2006-01-02", *hasta)
	if err != nil {
		return fmt.Errorf("parsear -hasta: %w", err)
	}
	out, err := reporter.ConsumoFolios(ctx, ini, fin.AddDate(0, 0, 1).Add(-time.Second))
	if err != nil {
		return err
	}
	return escribir(*salida, out)
}

func cmdLibro(ctx context.Context, args []string, reporter *reports.ReportBuilder) error {
	fs := flag.NewFlagSet("libro", flag.ExitOnError)
	periodo := fs.String("periodo", time.Now().Format("2006-01"), "período tributario (AAAA-MM)")
	salida := fs.String("salida", "", "archivo de salida; vacío = stdout")
	fs.Parse(args)

	mes, err := time.Parse("2006-01", *periodo)
	if err != nil {
		return fmt.Errorf("parsear -periodo: %w", err)
	}
	out, err := reporter.LibroBoletas(ctx, mes)
	if err != nil {
		return err
	}
	return escribir(*salida, out)
}

func escribir(ruta string, data []byte) error {
	if ruta == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(ruta, data, 0o644)
}
