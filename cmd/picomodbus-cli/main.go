package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rinzlerlabs/picomodbus/client"
	"github.com/rinzlerlabs/picomodbus/platform"
	"github.com/rinzlerlabs/picomodbus/server"
	"github.com/rinzlerlabs/picomodbus/transport"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "picomodbus-cli",
		Usage: "poke MODBUS devices over TCP or serial",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "address",
				Usage: "tcp://host:port or a serial device path",
				Value: "tcp://127.0.0.1:502",
			},
			&cli.IntFlag{
				Name:  "baud",
				Usage: "baud rate for serial devices",
				Value: 19200,
			},
			&cli.UintFlag{
				Name:  "unit",
				Usage: "unit id of the peer (0 broadcasts on serial)",
				Value: 1,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "response timeout",
				Value: 5 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log wire traffic",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "read",
				Usage: "read coils, discrete inputs, holding or input registers",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Value: "holding", Usage: "coils, discrete, holding, or input"},
					&cli.UintFlag{Name: "offset", Value: 0},
					&cli.UintFlag{Name: "quantity", Value: 1},
				},
				Action: runRead,
			},
			{
				Name:  "write",
				Usage: "write a single coil or holding register",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Value: "register", Usage: "coil or register"},
					&cli.UintFlag{Name: "offset", Value: 0},
					&cli.UintFlag{Name: "value", Value: 0},
				},
				Action: runWrite,
			},
			{
				Name:  "serve",
				Usage: "run a datastore-backed server",
				Action: runServe,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	if c.Bool("verbose") {
		return zap.NewDevelopment()
	}
	return zap.NewNop(), nil
}

type closableConn interface {
	transport.Conn
	Close() error
}

func dial(c *cli.Context) (closableConn, bool, error) {
	address := c.String("address")
	if after, ok := strings.CutPrefix(address, "tcp://"); ok {
		conn, err := net.Dial("tcp", after)
		if err != nil {
			return nil, false, err
		}
		return platform.NewNetConn(conn), false, nil
	}
	port, err := platform.OpenSerialPort(address, c.Int("baud"))
	if err != nil {
		return nil, false, err
	}
	return port, true, nil
}

func newClient(c *cli.Context) (*client.Client, func(), error) {
	logger, err := newLogger(c)
	if err != nil {
		return nil, nil, err
	}
	conn, serial, err := dial(c)
	if err != nil {
		return nil, nil, err
	}
	opts := []client.Option{
		client.WithDestination(byte(c.Uint("unit"))),
		client.WithReadTimeout(c.Duration("timeout")),
	}
	var mb *client.Client
	if serial {
		mb = client.NewRTU(conn, logger, opts...)
	} else {
		mb = client.NewTCP(conn, logger, opts...)
	}
	return mb, func() { conn.Close() }, nil
}

func runRead(c *cli.Context) error {
	mb, closeConn, err := newClient(c)
	if err != nil {
		return err
	}
	defer closeConn()

	offset := uint16(c.Uint("offset"))
	quantity := uint16(c.Uint("quantity"))
	switch c.String("type") {
	case "coils":
		values, err := mb.ReadCoils(offset, quantity)
		if err != nil {
			return err
		}
		fmt.Println(values)
	case "discrete":
		values, err := mb.ReadDiscreteInputs(offset, quantity)
		if err != nil {
			return err
		}
		fmt.Println(values)
	case "holding":
		values, err := mb.ReadHoldingRegisters(offset, quantity)
		if err != nil {
			return err
		}
		fmt.Println(values)
	case "input":
		values, err := mb.ReadInputRegisters(offset, quantity)
		if err != nil {
			return err
		}
		fmt.Println(values)
	default:
		return fmt.Errorf("unknown read type %q", c.String("type"))
	}
	return nil
}

func runWrite(c *cli.Context) error {
	mb, closeConn, err := newClient(c)
	if err != nil {
		return err
	}
	defer closeConn()

	offset := uint16(c.Uint("offset"))
	switch c.String("type") {
	case "coil":
		return mb.WriteSingleCoil(offset, c.Uint("value") != 0)
	case "register":
		return mb.WriteSingleRegister(offset, uint16(c.Uint("value")))
	default:
		return fmt.Errorf("unknown write type %q", c.String("type"))
	}
}

func runServe(c *cli.Context) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	handler := server.NewDefaultHandler(logger, 0, 0, 0, 0)
	address := c.String("address")
	if after, ok := strings.CutPrefix(address, "tcp://"); ok {
		return serveTCP(ctx, logger, after, handler)
	}

	port, err := platform.OpenSerialPort(address, c.Int("baud"))
	if err != nil {
		return err
	}
	defer port.Close()
	srv, err := server.NewRTU(port, logger, byte(c.Uint("unit")), handler.Handlers(),
		server.WithReadTimeout(time.Second))
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

func serveTCP(ctx context.Context, logger *zap.Logger, address string, handler *server.DefaultHandler) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	defer listener.Close()
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go func() {
			defer conn.Close()
			srv := server.NewTCP(platform.NewNetConn(conn), logger, handler.Handlers(),
				server.WithReadTimeout(time.Second))
			if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
				logger.Debug("Connection closed", zap.Error(err))
			}
		}()
	}
}
